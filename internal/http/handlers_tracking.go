package http

import (
	"net/http"
	"time"

	"github.com/shahdkhalaf/graduation-project/internal/model"
)

type trackingResponse struct {
	LogID      int64     `json:"log_id"`
	FromUserID int64     `json:"from_user_id"`
	ToUserID   int64     `json:"to_user_id"`
	Status     int       `json:"status"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func mapTracking(req model.TrackingRequest) trackingResponse {
	return trackingResponse{
		LogID:      req.LogID,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Status:     int(req.Status),
		State:      req.Status.String(),
		CreatedAt:  req.CreatedAt,
		UpdatedAt:  req.UpdatedAt,
	}
}

func mapTrackingList(reqs []model.TrackingRequest) []trackingResponse {
	out := make([]trackingResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, mapTracking(req))
	}
	return out
}

type sendTrackingRequest struct {
	ToUserID *int64 `json:"to_user_id"`
}

func (s *Server) handleSendTrackingRequest(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req sendTrackingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.ToUserID == nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	created, err := s.tracking.SendRequest(r.Context(), claims.UserID, *req.ToUserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Tracking request sent",
		"request": mapTracking(created),
	})
}

func (s *Server) handleCheckTrackingRequests(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	reqs, err := s.tracking.ListIncoming(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": mapTrackingList(reqs)})
}

func (s *Server) handleCheckSentTrackingRequests(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	reqs, err := s.tracking.ListOutgoing(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": mapTrackingList(reqs)})
}

type updateTrackingRequest struct {
	FromUserID *int64 `json:"from_user_id"`
	Status     *int   `json:"status"`
	ToUserID   *int64 `json:"to_user_id"`
}

func (s *Server) handleUpdateTrackingRequest(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req updateTrackingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.FromUserID == nil || req.Status == nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	updated, err := s.tracking.UpdateRequest(r.Context(), claims.UserID, *req.FromUserID, *req.Status, req.ToUserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tracking request updated",
		"request": mapTracking(updated),
	})
}
