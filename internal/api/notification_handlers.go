package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
)

// listNotificationsHandler returns the actor's notification center rows,
// unread first
func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	limit, offset := paginationParams(r)

	notifications, err := s.notificationRepo.ListByRecipient(r.Context(), actor.UserID, limit, offset)

	if err != nil {
		s.respondWithRepoError(w, err, "")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: notifications})
}

// unreadCountHandler returns the actor's unread badge count
func (s *Server) unreadCountHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	count, err := s.notificationRepo.CountUnread(r.Context(), actor.UserID)

	if err != nil {
		s.respondWithRepoError(w, err, "")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]int{"unread": count},
	})
}

// markNotificationReadHandler marks one of the actor's notifications read
func (s *Server) markNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	err := s.notificationRepo.MarkRead(r.Context(), mux.Vars(r)["id"], actor.UserID)

	if err != nil {
		s.respondWithRepoError(w, err, "notification not found")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true})
}

// markAllNotificationsReadHandler clears the actor's unread badge
func (s *Server) markAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	if err := s.notificationRepo.MarkAllRead(r.Context(), actor.UserID); err != nil {
		s.respondWithRepoError(w, err, "")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true})
}

type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// pushSubscribeHandler registers a browser push subscription for the actor.
// The payload shape matches what PushManager.subscribe returns.
func (s *Server) pushSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	var req pushSubscribeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, apperrors.NewValidationError("invalid request payload"))
		return
	}
	defer r.Body.Close()

	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		s.respondWithError(w, apperrors.NewValidationError("endpoint, p256dh, and auth are required"))
		return
	}

	sub := models.NewPushSubscription(actor.UserID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)

	if err := s.pushSubRepo.Upsert(r.Context(), sub); err != nil {
		s.respondWithRepoError(w, err, "")
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: sub})
}

type pushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// pushUnsubscribeHandler removes one of the actor's push endpoints
func (s *Server) pushUnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)

	if !ok {
		return
	}

	var req pushUnsubscribeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		s.respondWithError(w, apperrors.NewValidationError("endpoint is required"))
		return
	}
	defer r.Body.Close()

	if err := s.pushSubRepo.Delete(r.Context(), actor.UserID, req.Endpoint); err != nil {
		s.respondWithRepoError(w, err, "")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true})
}
