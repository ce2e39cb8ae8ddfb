package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
)

// ApiResponse is the envelope for every JSON response. Warning carries the
// degraded-success case: the state change committed but some notifications
// may not have gone out. Callers must not treat a warning as a failure.
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError maps an error from the taxonomy onto the wire
func (s *Server) respondWithError(w http.ResponseWriter, err error) {
	s.respondWithJSON(w, apperrors.StatusCode(err), ApiResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// respondWithResult sends a success response, downgrading a dispatch
// degradation to a warning on an otherwise successful payload.
func (s *Server) respondWithResult(w http.ResponseWriter, code int, data interface{}, err error) {
	if err == nil {
		s.respondWithJSON(w, code, ApiResponse{Success: true, Data: data})
		return
	}

	if apperrors.IsDispatchDegraded(err) {
		s.respondWithJSON(w, code, ApiResponse{
			Success: true,
			Data:    data,
			Warning: err.Error(),
		})
		return
	}

	s.respondWithError(w, err)
}
