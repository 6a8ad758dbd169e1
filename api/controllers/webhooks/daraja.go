package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/netpoint-soft/cybercafe-backend/api/middleware"
	darajawebhook "github.com/netpoint-soft/cybercafe-backend/internal/webhooks/daraja"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

const darajaMaxBodyBytes = 1 << 20

type darajaCallbackService interface {
	HandleCallback(ctx context.Context, remoteIP string, payload []byte) darajawebhook.Ack
}

// DarajaCallback receives STK push results from the gateway. The response is
// always HTTP 200 with the gateway's own acknowledgement shape; anything else
// triggers redelivery storms from their side.
func DarajaCallback(svc darajaCallbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ack := darajawebhook.Ack{ResultCode: 1, ResultDesc: "Internal error"}
		if svc != nil {
			payload, err := io.ReadAll(io.LimitReader(r.Body, darajaMaxBodyBytes))
			if err != nil {
				if logg != nil {
					logg.Warn(ctx, "daraja callback body read failed: "+err.Error())
				}
				ack = darajawebhook.Ack{ResultCode: 1, ResultDesc: "Invalid callback data"}
			} else {
				ack = svc.HandleCallback(ctx, middleware.ClientIP(r), payload)
			}
		} else if logg != nil {
			logg.Error(ctx, "daraja callback service unavailable", nil)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(ack); err != nil && logg != nil {
			logg.Warn(ctx, "daraja ack write failed: "+err.Error())
		}
	}
}
