package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"comandero/internal/order/app/core"
)

type ctxKey string

// ClaimsKey is the request-context key the auth middleware stores decoded
// claims under.
const ClaimsKey ctxKey = "claims"

func JSONResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func JSONError(w http.ResponseWriter, status int, err error) {
	JSONResponse(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps the service error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrDuplicateOrder), errors.Is(err, core.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrTenantUnresolved),
		errors.Is(err, core.ErrMissingIdempotencyKey),
		errors.Is(err, core.ErrInvalidPaymentStatus),
		errors.Is(err, core.ErrOrderLocked),
		errors.Is(err, core.ErrIllegalTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func claimsFrom(r *http.Request) (core.Claims, bool) {
	claims, ok := r.Context().Value(ClaimsKey).(core.Claims)
	return claims, ok
}
