package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
)

type provisionClientRequest struct {
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// provisionClientHandler creates a client record ahead of the client's
// signup
func (s *Server) provisionClientHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	var req provisionClientRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, apperrors.NewValidationError("invalid request payload"))
		return
	}
	defer r.Body.Close()

	client, err := s.accountService.ProvisionClient(r.Context(), actor, req.Name, req.CompanyName, req.Phone, req.Email)

	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: client})
}

// linkSignupHandler attaches the authenticated account to its provisioned
// record. This is the one endpoint a role-less account may call; identity
// comes from the verified token, not the request body.
func (s *Server) linkSignupHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())

	if !ok {
		s.respondWithError(w, apperrors.NewAuthorizationError("authentication required"))
		return
	}

	if actor.Role != "" {
		s.respondWithError(w, apperrors.NewConflictError("account is already linked"))
		return
	}

	role, err := s.accountService.LinkSignup(r.Context(), actor.UserID, actor.Email)

	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"role": string(role)},
	})
}

// listClientsHandler returns the active client directory
func (s *Server) listClientsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	clients, err := s.accountService.ListClients(r.Context(), actor)

	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: clients})
}

// deactivateClientHandler soft-deletes a client from the directory
func (s *Server) deactivateClientHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	if err := s.accountService.DeactivateClient(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true})
}

// healthCheckHandler reports liveness and store reachability
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if err := s.db.DB.PingContext(r.Context()); err != nil {
		s.logger.Error("Health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.respondWithJSON(w, code, ApiResponse{
		Success: code == http.StatusOK,
		Data:    map[string]string{"status": status},
	})
}
