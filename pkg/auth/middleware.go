package auth

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"
)

type contextKey string

const (
	tokenHeader                 = "Authorization"
	tokenPrefix                 = "Bearer "
	ClaimsKey        contextKey = "admin_claims"
	SubjectKey       contextKey = "admin_subject"
	PermissionHeader            = "X-Required-Permission"
)

// NewAuthInterceptor creates a ConnectRPC interceptor that authenticates the
// bearer token and, when permission is not empty, requires it to be granted.
func NewAuthInterceptor(signer *Signer, permission string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get(tokenHeader)
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing authorization header"))
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization header format"))
			}

			claims, err := signer.ValidateToken(strings.TrimPrefix(authHeader, tokenPrefix))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid or expired token"))
			}

			if permission != "" && !claims.HasPermission(permission) {
				connectErr := connect.NewError(connect.CodePermissionDenied, errors.New("missing permission "+permission))
				connectErr.Meta().Set(PermissionHeader, permission)
				return nil, connectErr
			}

			ctx = context.WithValue(ctx, ClaimsKey, claims)
			ctx = context.WithValue(ctx, SubjectKey, claims.Subject)

			return next(ctx, req)
		}
	}
}

// GetClaims retrieves the full claims from the context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetSubject retrieves the token subject from the context.
func GetSubject(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(SubjectKey).(string)
	return sub, ok
}
