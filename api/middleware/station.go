package middleware

import (
	"net/http"

	"github.com/netpoint-soft/cybercafe-backend/api/responses"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

// StationContext requires a till station claim on the token. Cashier-facing
// payment routes are station-scoped; reporting routes are not.
func StationContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if StationIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "station context missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
