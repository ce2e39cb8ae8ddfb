package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/lifecycle"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/retry"
)

type submitLoadRequest struct {
	OriginAddress      string     `json:"origin_address"`
	DestinationAddress string     `json:"destination_address"`
	TrailerType        string     `json:"trailer_type"`
	WeightLbs          int        `json:"weight_lbs"`
	PickupDate         time.Time  `json:"pickup_date"`
	PickupTime         *string    `json:"pickup_time,omitempty"`
	DeliveryDate       *time.Time `json:"delivery_date,omitempty"`
	DeliveryTime       *string    `json:"delivery_time,omitempty"`
	DeliveryASAP       bool       `json:"delivery_asap"`
	PaymentRequired    bool       `json:"payment_required"`
}

// submitLoadHandler creates a pending load for the acting client
func (s *Server) submitLoadHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	var req submitLoadRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, apperrors.NewValidationError("invalid request payload"))
		return
	}
	defer r.Body.Close()

	load, err := s.lifecycle.SubmitLoad(r.Context(), actor, lifecycle.SubmitLoadRequest{
		OriginAddress:      req.OriginAddress,
		DestinationAddress: req.DestinationAddress,
		TrailerType:        req.TrailerType,
		WeightLbs:          req.WeightLbs,
		PickupDate:         req.PickupDate,
		PickupTime:         req.PickupTime,
		DeliveryDate:       req.DeliveryDate,
		DeliveryTime:       req.DeliveryTime,
		DeliveryASAP:       req.DeliveryASAP,
		PaymentRequired:    req.PaymentRequired,
	})

	if load == nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithResult(w, http.StatusCreated, load, err)
}

type assignDriverRequest struct {
	DriverID    string     `json:"driver_id"`
	TruckNumber string     `json:"truck_number"`
	PriceCents  int64      `json:"price_cents"`
	ETA         *time.Time `json:"eta,omitempty"`
}

// assignDriverHandler performs or edits a driver assignment
func (s *Server) assignDriverHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	var req assignDriverRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, apperrors.NewValidationError("invalid request payload"))
		return
	}
	defer r.Body.Close()

	loadID := mux.Vars(r)["id"]

	var load *models.Load
	var opErr error

	// The conditional update is idempotent with respect to the expected
	// predecessor, so a transient store failure is safe to retry whole.
	err := retry.Retry(r.Context(), func() error {
		load, opErr = s.lifecycle.AssignDriver(r.Context(), actor, loadID, lifecycle.AssignmentRequest{
			DriverID:    req.DriverID,
			TruckNumber: req.TruckNumber,
			PriceCents:  req.PriceCents,
			ETA:         req.ETA,
		})
		if opErr != nil && apperrors.IsRetryable(opErr) {
			return opErr
		}
		return nil
	}, s.retryConfig())

	if err != nil {
		s.respondWithError(w, opErr)
		return
	}

	if load == nil {
		s.respondWithError(w, opErr)
		return
	}

	s.respondWithResult(w, http.StatusOK, load, opErr)
}

type advanceRequest struct {
	Transition   string  `json:"transition"`
	SignatureURL *string `json:"signature_url,omitempty"`
}

// advanceHandler drives the driver transitions: arrive, load, depart,
// arrive_at_delivery, deliver
func (s *Server) advanceHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	var req advanceRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, apperrors.NewValidationError("invalid request payload"))
		return
	}
	defer r.Body.Close()

	tr, err := models.ParseTransition(req.Transition)

	if err != nil {
		s.respondWithError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	var proof *models.SignatureProof

	if req.SignatureURL != nil && *req.SignatureURL != "" {
		proof = &models.SignatureProof{
			URL:      *req.SignatureURL,
			Captured: models.GetCurrentTime(),
		}
	}

	loadID := mux.Vars(r)["id"]

	var load *models.Load
	var opErr error

	retryErr := retry.Retry(r.Context(), func() error {
		load, opErr = s.lifecycle.Advance(r.Context(), actor, loadID, tr, proof)
		if opErr != nil && apperrors.IsRetryable(opErr) {
			return opErr
		}
		return nil
	}, s.retryConfig())

	if retryErr != nil || load == nil {
		s.respondWithError(w, opErr)
		return
	}

	s.respondWithResult(w, http.StatusOK, load, opErr)
}

// getLoadHandler returns one load, visible to its client, its driver, and
// dispatchers
func (s *Server) getLoadHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	load, err := s.loadRepo.GetLoad(r.Context(), mux.Vars(r)["id"])

	if err != nil {
		s.respondWithRepoError(w, err, "load not found")
		return
	}

	if !s.canSeeLoad(r, actor, load) {
		s.respondWithError(w, apperrors.NewAuthorizationError("no access to this load"))
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: load})
}

// listLoadsHandler lists loads scoped to the actor's role: clients see
// their own, drivers see their assignments, dispatchers see everything.
func (s *Server) listLoadsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	limit, offset := paginationParams(r)

	var loads []*models.Load
	var err error

	switch actor.Role {
	case models.RoleClient:
		client, cErr := s.clientRepo.GetByAccountID(r.Context(), actor.UserID)

		if cErr != nil {
			s.respondWithRepoError(w, cErr, "client account not found")
			return
		}
		loads, err = s.loadRepo.ListByClient(r.Context(), client.ID, limit, offset)
	case models.RoleDriver:
		driver, dErr := s.driverRepo.GetByAccountID(r.Context(), actor.UserID)

		if dErr != nil {
			s.respondWithRepoError(w, dErr, "driver account not found")
			return
		}
		loads, err = s.loadRepo.ListByDriver(r.Context(), driver.ID, limit, offset)
	case models.RoleDispatcher:
		loads, err = s.loadRepo.ListAll(r.Context(), limit, offset)
	}

	if err != nil {
		s.respondWithRepoError(w, err, "")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: loads})
}

func (s *Server) canSeeLoad(r *http.Request, actor models.Actor, load *models.Load) bool {
	switch actor.Role {
	case models.RoleDispatcher:
		return true
	case models.RoleClient:
		client, err := s.clientRepo.GetByAccountID(r.Context(), actor.UserID)
		return err == nil && client.ID == load.ClientID
	case models.RoleDriver:
		driver, err := s.driverRepo.GetByAccountID(r.Context(), actor.UserID)
		return err == nil && load.DriverID != nil && *load.DriverID == driver.ID
	}
	return false
}

func (s *Server) respondWithRepoError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, repository.ErrNotFound) {
		if notFoundMsg == "" {
			notFoundMsg = "record not found"
		}
		s.respondWithError(w, apperrors.NewNotFoundError(notFoundMsg))
		return
	}
	s.respondWithError(w, apperrors.NewStoreUnavailableError(err.Error()))
}

func (s *Server) retryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts:     3,
		BackoffStrategy: retry.NewDefaultExponentialBackoff(),
		Logger:          s.logger,
		RetryableErrors: []error{apperrors.ErrStoreUnavailable},
	}
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
