package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rifthq/smartstats/internal/api/middleware"
	"github.com/rifthq/smartstats/internal/api/response"
	"github.com/rifthq/smartstats/internal/domain"
	"github.com/rifthq/smartstats/internal/service"
)

// DataHandler handles esports stats queries
type DataHandler struct {
	dataService *service.DataService
}

// NewDataHandler creates a new data handler
func NewDataHandler(dataService *service.DataService) *DataHandler {
	return &DataHandler{dataService: dataService}
}

// SearchMatches filters, sorts and pages matches
func (h *DataHandler) SearchMatches(w http.ResponseWriter, r *http.Request) {
	var req domain.MatchSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	result, err := h.dataService.SearchMatches(r.Context(), req)
	if err != nil {
		response.Fail(w, err, middleware.GetTraceID(r.Context()))
		return
	}

	response.OK(w, result)
}

// SearchPlayers finds players by name fragment
func (h *DataHandler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	result, err := h.dataService.SearchPlayers(
		r.Context(),
		q.Get("q"),
		queryInt(q.Get("page"), 1),
		queryInt(q.Get("pageSize"), 20),
	)
	if err != nil {
		response.Fail(w, err, middleware.GetTraceID(r.Context()))
		return
	}

	response.OK(w, result)
}

// Options returns filter option sets for the frontend
func (h *DataHandler) Options(w http.ResponseWriter, r *http.Request) {
	var req domain.DataOptionsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
	}

	result, err := h.dataService.Options(r.Context(), req)
	if err != nil {
		response.Fail(w, err, middleware.GetTraceID(r.Context()))
		return
	}

	response.OK(w, result)
}
