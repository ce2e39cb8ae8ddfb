package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
)

// listCandidatesHandler returns available drivers with their active-load
// counts for the assignment form
func (s *Server) listCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	candidates, err := s.driverService.ListCandidates(r.Context(), actor)

	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: candidates})
}

// listDriversHandler returns the full active driver directory
func (s *Server) listDriversHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	drivers, err := s.driverService.ListAll(r.Context(), actor)

	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: drivers})
}

type provisionDriverRequest struct {
	Name        string `json:"name"`
	InviteEmail string `json:"invite_email"`
	TruckType   string `json:"truck_type"`
	TruckNumber string `json:"truck_number"`
}

// provisionDriverHandler creates a driver record ahead of the driver's
// signup
func (s *Server) provisionDriverHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	var req provisionDriverRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, apperrors.NewValidationError("invalid request payload"))
		return
	}
	defer r.Body.Close()

	driver, err := s.driverService.Provision(r.Context(), actor, req.Name, req.InviteEmail, req.TruckType, req.TruckNumber)

	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: driver})
}

type setAvailabilityRequest struct {
	Status      string     `json:"status"`
	AvailableAt *time.Time `json:"available_at,omitempty"`
}

// setAvailabilityHandler changes a driver's availability status
func (s *Server) setAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	var req setAvailabilityRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, apperrors.NewValidationError("invalid request payload"))
		return
	}
	defer r.Body.Close()

	status, err := models.ParseAvailabilityStatus(req.Status)

	if err != nil {
		s.respondWithError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	driver, err := s.driverService.SetAvailability(r.Context(), actor, mux.Vars(r)["id"], status, req.AvailableAt)

	if driver == nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithResult(w, http.StatusOK, driver, err)
}

// deactivateDriverHandler soft-deletes a driver from the directory
func (s *Server) deactivateDriverHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	if err := s.driverService.Deactivate(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true})
}
