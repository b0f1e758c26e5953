package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shahdkhalaf/graduation-project/internal/model"
	"github.com/shahdkhalaf/graduation-project/internal/service"
)

type locationResponse struct {
	ID         int64     `json:"id"`
	FromUserID int64     `json:"from_user_id"`
	ToUserID   int64     `json:"to_user_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`
}

func mapLocation(report model.LocationReport) locationResponse {
	return locationResponse{
		ID:         report.ID,
		FromUserID: report.FromUserID,
		ToUserID:   report.ToUserID,
		Latitude:   report.Latitude,
		Longitude:  report.Longitude,
		Timestamp:  report.Timestamp,
	}
}

func (s *Server) handleSendLocation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req service.ReportInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	report, err := s.location.Report(r.Context(), claims.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Location saved",
		"location": mapLocation(report),
	})
}

func (s *Server) handleGetLatestLocation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	report, err := s.location.Latest(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapLocation(report))
}

type currentLocationResponse struct {
	UserID    int64     `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleGetCurrentLocation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	userID := claims.UserID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		userID = parsed
	}

	current, err := s.location.Current(r.Context(), claims.UserID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, currentLocationResponse{
		UserID:    current.UserID,
		Latitude:  current.Latitude,
		Longitude: current.Longitude,
		UpdatedAt: current.UpdatedAt,
	})
}

type priceResponse struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Cost     float64 `json:"cost"`
	Currency string  `json:"currency"`
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	price, err := s.pricing.Price(r.Context(), query.Get("from"), query.Get("to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		From:     price.From,
		To:       price.To,
		Cost:     price.Cost,
		Currency: price.Currency,
	})
}
