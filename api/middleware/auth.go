package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lumapay/lumapay-backend/api/responses"
	"github.com/lumapay/lumapay-backend/pkg/config"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

type ctxKey string

const (
	ctxKeySubject  ctxKey = "subject"
	ctxKeyRole     ctxKey = "role"
	ctxKeySellerID ctxKey = "seller_id"
)

// Claims is the token shape issued by the hosted identity provider.
type Claims struct {
	Role     string `json:"role"`
	SellerID string `json:"seller_id,omitempty"`
	jwt.RegisteredClaims
}

// Auth verifies the bearer token and stores identity fields on the context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required"))
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unexpected signing method")
				}
				return []byte(cfg.Secret), nil
			}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, ctxKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ctxKeyRole, claims.Role)
			ctx = context.WithValue(ctx, ctxKeySellerID, claims.SellerID)
			if logg != nil && claims.SellerID != "" {
				ctx = logg.WithSellerID(ctx, claims.SellerID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route on the authenticated role.
func RequireRole(role string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role "+role+" required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RoleFromContext returns the authenticated role, if any.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(ctxKeyRole).(string); ok {
		return role
	}
	return ""
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) string {
	if sub, ok := ctx.Value(ctxKeySubject).(string); ok {
		return sub
	}
	return ""
}

// SellerIDFromContext parses the seller id claim. Seller-scoped routes
// require it; operator routes do not carry one.
func SellerIDFromContext(ctx context.Context) (uuid.UUID, error) {
	raw, _ := ctx.Value(ctxKeySellerID).(string)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid seller id claim")
	}
	return id, nil
}
