package http

import (
	"context"
	"net/http"
	"strings"

	"comandero/internal/order/api/http/handle"
	"comandero/internal/order/app/core"
	"comandero/internal/xpkg/logger"
)

type AuthMiddleware struct {
	verifier core.IIdentity
	mylog    logger.Logger
}

func NewAuthMiddleware(verifier core.IIdentity, mylog logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, mylog: mylog}
}

// Require rejects requests without a valid bearer token and stores the
// decoded claims on the request context.
func (am *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			handle.JSONError(w, http.StatusUnauthorized, core.ErrUnauthorized)
			return
		}

		claims, err := am.verifier.Verify(token)
		if err != nil {
			am.mylog.Action("auth_failed").Warn("Rejected bearer token", "reason", err.Error())
			handle.JSONError(w, http.StatusUnauthorized, core.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), handle.ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
