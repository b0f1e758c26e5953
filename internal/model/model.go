package model

import "time"

type User struct {
	ID            int64
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Age           int
	Gender        string
	District      string
	EmailVerified bool
	CreatedAt     time.Time
}

type TrackingStatus int

const (
	StatusPending  TrackingStatus = 0
	StatusAccepted TrackingStatus = 1
	StatusRejected TrackingStatus = 2
)

func (s TrackingStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return "closed"
	}
}

// Resolved reports whether s is a terminal status a recipient may set.
func (s TrackingStatus) Resolved() bool {
	return s >= StatusAccepted
}

type TrackingRequest struct {
	LogID      int64
	FromUserID int64
	ToUserID   int64
	Status     TrackingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type LocationReport struct {
	ID         int64
	FromUserID int64
	ToUserID   int64
	Latitude   float64
	Longitude  float64
	Timestamp  time.Time
}

type CurrentLocation struct {
	UserID    int64
	Latitude  float64
	Longitude float64
	UpdatedAt time.Time
}

type RoutePrice struct {
	From     string
	To       string
	Cost     float64
	Currency string
}
