package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
)

// createCheckoutHandler opens a checkout session for a load that requires
// payment
func (s *Server) createCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	session, err := s.paymentGate.CreateCheckout(r.Context(), actor, mux.Vars(r)["id"])

	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: session})
}

type paymentCallbackRequest struct {
	IntentID string `json:"intent_id"`
	Outcome  string `json:"outcome"`
}

// paymentCallbackHandler records the external checkout outcome for a load.
// The caller is the payment provider's webhook relay, which authenticates
// like any other account; the intent id match is the per-load check.
func (s *Server) paymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromContext(r.Context()); !ok {
		s.respondWithError(w, apperrors.NewAuthorizationError("authentication required"))
		return
	}

	var req paymentCallbackRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, apperrors.NewValidationError("invalid request payload"))
		return
	}
	defer r.Body.Close()

	if req.IntentID == "" {
		s.respondWithError(w, apperrors.NewValidationError("intent id is required"))
		return
	}

	loadID := mux.Vars(r)["id"]

	var err error

	switch req.Outcome {
	case "succeeded":
		err = s.paymentGate.ConfirmPayment(r.Context(), loadID, req.IntentID)
	case "failed", "expired":
		err = s.paymentGate.FailPayment(r.Context(), loadID, req.IntentID)
	default:
		s.respondWithError(w, apperrors.NewValidationError("outcome must be succeeded, failed, or expired"))
		return
	}

	if err != nil && !apperrors.IsDispatchDegraded(err) {
		s.respondWithError(w, err)
		return
	}

	s.respondWithResult(w, http.StatusOK, map[string]string{"load_id": loadID, "outcome": req.Outcome}, err)
}
