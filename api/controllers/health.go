package controllers

import (
	"net/http"

	"github.com/netpoint-soft/cybercafe-backend/api/responses"
	"github.com/netpoint-soft/cybercafe-backend/pkg/config"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CyberCafe-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the datastore and cache answer.
func HealthReady(cfg *config.Config, database db.Pinger, cache db.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-CyberCafe-Env", cfg.App.Env)

		if database != nil {
			if err := database.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cache unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
