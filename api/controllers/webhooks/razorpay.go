package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/perennis1/studio-perennis-backend/api/responses"
	razorpaywebhook "github.com/perennis1/studio-perennis-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
	"github.com/perennis1/studio-perennis-backend/pkg/razorpay"
)

const signatureHeader = "X-Razorpay-Signature"

type razorpayWebhookService interface {
	Process(ctx context.Context, event *razorpaywebhook.WebhookEvent) (*razorpaywebhook.ProcessResult, error)
}

type webhookSecretProvider interface {
	WebhookSecret() string
}

// RazorpayWebhook handles payment deliveries from the gateway. The signature
// is checked against the raw body before anything else, so an unsigned or
// tampered request never reaches parsing.
func RazorpayWebhook(svc razorpayWebhookService, secrets webhookSecretProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secrets == nil || secrets.WebhookSecret() == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway is not configured"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if !razorpay.VerifyWebhookSignature(body, signature, secrets.WebhookSecret()) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "webhook signature mismatch"))
			return
		}

		event, err := razorpaywebhook.ParseEvent(body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithGatewayEventID(ctx, event.ID)
		}

		result, err := svc.Process(ctx, event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(result.Outcome)), "webhook delivery handled")
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
