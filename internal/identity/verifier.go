package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/pkg/config"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
)

// Principal is the authenticated caller as the identity service sees it.
type Principal struct {
	UserID uuid.UUID
	Admin  bool
}

// Verifier resolves a bearer token to a principal. Identity (users, sessions,
// roles) lives in a separate service; this module only consumes it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// HTTPVerifier introspects tokens against the identity service.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPVerifier builds a verifier from the identity config.
func NewHTTPVerifier(cfg config.IdentityConfig) (*HTTPVerifier, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("identity base url is required")
	}
	return &HTTPVerifier{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Verify calls the identity service's introspection endpoint.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/sessions/introspect", nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build introspect request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity service unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("identity service answered %d", resp.StatusCode))
	}

	var body introspectResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode introspect response")
	}
	if !body.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity returned malformed user id")
	}
	return &Principal{
		UserID: userID,
		Admin:  strings.EqualFold(body.Role, "admin"),
	}, nil
}
