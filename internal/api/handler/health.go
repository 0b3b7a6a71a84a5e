package handler

import (
	"net/http"

	"github.com/rifthq/smartstats/internal/api/response"
	"github.com/rifthq/smartstats/internal/repository/postgres"
	"github.com/rifthq/smartstats/internal/repository/stats"
)

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including database connectivity
func ReadyCheck(db *postgres.DB, statsDB *stats.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "database not ready")
			return
		}
		if err := statsDB.Ping(r.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "stats database not ready")
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}
