package controllers

import (
	"net/http"

	"github.com/netpoint-soft/cybercafe-backend/api/middleware"
	"github.com/netpoint-soft/cybercafe-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func StationPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "station", "status": "ok"}
		if station := middleware.StationIDFromContext(r.Context()); station != "" {
			payload["station_id"] = station
		}
		responses.WriteSuccess(w, payload)
	}
}
