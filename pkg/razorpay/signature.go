package razorpay

import (
	razorpayutils "github.com/razorpay/razorpay-go/utils"
)

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw request body. HMAC-SHA256 with the shared webhook secret, compared in
// constant time by the SDK.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	return razorpayutils.VerifyWebhookSignature(string(body), signature, secret)
}
