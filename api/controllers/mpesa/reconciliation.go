package mpesa

import (
	"net/http"
	"strings"
	"time"

	"github.com/netpoint-soft/cybercafe-backend/api/responses"
	"github.com/netpoint-soft/cybercafe-backend/internal/reconciliation"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

// Reconciliation serves the daily report comparing POS expectations against
// gateway confirmations. Defaults to today when no date is supplied.
func Reconciliation(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		day := time.Now().UTC()
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			parsed, err := time.ParseInLocation(inboxDateLayout, raw, time.UTC)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date, expected YYYY-MM-DD"))
				return
			}
			day = parsed
		}

		report, err := svc.DailyReport(ctx, day)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
