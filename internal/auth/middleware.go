package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mobooking/internal/config"
	"mobooking/internal/logger"
	"mobooking/internal/utils"

	"github.com/coreos/go-oidc/v3/oidc"
)

type contextKey string

const ownerIDKey contextKey = "owner_id"

// Verifier turns a raw bearer token into the owner's ID (the token's sub claim).
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (string, error)
}

// OIDCVerifier checks tokens issued by the host platform's identity provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	// SkipClientIDCheck → tokens from any client of the realm are accepted
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Sub == "" {
		return "", errors.New("subject claim not found in token")
	}
	return claims.Sub, nil
}

// NewVerifier picks OIDC when an issuer is configured, otherwise a shared HS256 secret.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (Verifier, error) {
	if cfg.OIDCIssuer != "" {
		return NewOIDCVerifier(ctx, cfg.OIDCIssuer)
	}
	if cfg.JWTSecret != "" {
		return NewHMACVerifier([]byte(cfg.JWTSecret)), nil
	}
	return nil, errors.New("neither OIDC_ISSUER nor AUTH_JWT_SECRET is set")
}

// Middleware rejects requests without a valid owner token and stores the owner ID in the context.
func Middleware(v Verifier, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				l.LogSecurity("AUTH_MISSING", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
				return
			}

			ownerID, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				l.LogSecurity("AUTH_INVALID", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// Helper to extract the owner ID in handlers
func OwnerID(ctx context.Context) string {
	if uid, ok := ctx.Value(ownerIDKey).(string); ok {
		return uid
	}
	return ""
}
