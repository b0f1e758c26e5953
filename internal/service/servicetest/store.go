// Package servicetest provides in-memory stores for exercising the service
// layer and the transports built on it without Postgres or Redis.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

// Store is an in-memory stand-in for repository.Store. CreatePendingRequest
// enforces one Pending row per ordered pair the way the partial unique index does.
type Store struct {
	mu       sync.Mutex
	users    map[int64]model.User
	nextUser int64
	requests []model.TrackingRequest
	nextLog  int64
	reports  []model.LocationReport
	current  map[int64]model.CurrentLocation
	routes   map[[2]string]model.RoutePrice
	clock    time.Time
	fail     error
}

func NewStore() *Store {
	return &Store{
		users:   map[int64]model.User{},
		current: map[int64]model.CurrentLocation{},
		routes:  map[[2]string]model.RoutePrice{},
		clock:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// AddUser creates a user with placeholder profile fields and panics on conflict.
func (m *Store) AddUser(email string) model.User {
	user, err := m.CreateUser(context.Background(), model.User{Email: email, PasswordHash: "x", FirstName: "F", LastName: "L", Age: 20, Gender: "male", District: "Nasr City"})
	if err != nil {
		panic(err)
	}
	return user
}

func (m *Store) CreateUser(_ context.Context, user model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return model.User{}, m.fail
	}
	user.Email = strings.ToLower(user.Email)
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return model.User{}, apperr.Conflict("email_exists")
		}
	}
	m.nextUser++
	user.ID = m.nextUser
	user.CreatedAt = m.clock
	m.users[user.ID] = user
	return user, nil
}

func (m *Store) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return model.User{}, apperr.NotFound("user_not_found")
}

func (m *Store) GetUserByID(_ context.Context, userID int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return model.User{}, apperr.NotFound("user_not_found")
	}
	return user, nil
}

func (m *Store) UserExists(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	_, ok := m.users[userID]
	return ok, nil
}

func (m *Store) MarkEmailVerified(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user_not_found")
	}
	user.EmailVerified = true
	m.users[userID] = user
	return nil
}

func (m *Store) CreatePendingRequest(_ context.Context, fromUserID, toUserID int64) (model.TrackingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[toUserID]; !ok {
		return model.TrackingRequest{}, apperr.NotFound("user_not_found")
	}
	for _, req := range m.requests {
		if req.FromUserID == fromUserID && req.ToUserID == toUserID && req.Status == model.StatusPending {
			return model.TrackingRequest{}, apperr.Conflict("request_pending")
		}
	}
	m.nextLog++
	req := model.TrackingRequest{LogID: m.nextLog, FromUserID: fromUserID, ToUserID: toUserID, Status: model.StatusPending, CreatedAt: m.clock, UpdatedAt: m.clock}
	m.requests = append(m.requests, req)
	return req, nil
}

func (m *Store) ResolvePendingRequest(_ context.Context, fromUserID, toUserID int64, status model.TrackingStatus) (model.TrackingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, req := range m.requests {
		if req.FromUserID == fromUserID && req.ToUserID == toUserID && req.Status == model.StatusPending {
			m.requests[i].Status = status
			return m.requests[i], nil
		}
	}
	return model.TrackingRequest{}, apperr.NotFound("request_not_found")
}

func (m *Store) ListIncomingRequests(_ context.Context, toUserID int64, statuses []model.TrackingStatus) ([]model.TrackingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.TrackingRequest{}
	for _, req := range m.requests {
		if req.ToUserID != toUserID {
			continue
		}
		for _, status := range statuses {
			if req.Status == status {
				out = append(out, req)
				break
			}
		}
	}
	return out, nil
}

func (m *Store) ListOutgoingRequests(_ context.Context, fromUserID int64) ([]model.TrackingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.TrackingRequest{}
	for _, req := range m.requests {
		if req.FromUserID == fromUserID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *Store) HasAcceptedRelation(_ context.Context, a, b int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if req.Status != model.StatusAccepted {
			continue
		}
		if (req.FromUserID == a && req.ToUserID == b) || (req.FromUserID == b && req.ToUserID == a) {
			return true, nil
		}
	}
	return false, nil
}

// PendingCount reports the Pending rows for the ordered pair.
func (m *Store) PendingCount(fromUserID, toUserID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, req := range m.requests {
		if req.FromUserID == fromUserID && req.ToUserID == toUserID && req.Status == model.StatusPending {
			count++
		}
	}
	return count
}

func (m *Store) AppendLocation(_ context.Context, report model.LocationReport) (model.LocationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return model.LocationReport{}, m.fail
	}
	if _, ok := m.users[report.ToUserID]; !ok {
		return model.LocationReport{}, apperr.NotFound("user_not_found")
	}
	m.clock = m.clock.Add(time.Second)
	report.ID = int64(len(m.reports) + 1)
	report.Timestamp = m.clock
	m.reports = append(m.reports, report)
	m.current[report.FromUserID] = model.CurrentLocation{UserID: report.FromUserID, Latitude: report.Latitude, Longitude: report.Longitude, UpdatedAt: report.Timestamp}
	return report, nil
}

func (m *Store) LatestLocationFor(_ context.Context, toUserID int64) (model.LocationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := []model.LocationReport{}
	for _, report := range m.reports {
		if report.ToUserID == toUserID {
			matches = append(matches, report)
		}
	}
	if len(matches) == 0 {
		return model.LocationReport{}, apperr.NotFound("location_not_found")
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.After(matches[j].Timestamp)
		}
		return matches[i].ID > matches[j].ID
	})
	return matches[0], nil
}

func (m *Store) CurrentLocation(_ context.Context, userID int64) (model.CurrentLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.current[userID]
	if !ok {
		return model.CurrentLocation{}, apperr.NotFound("location_not_found")
	}
	return current, nil
}

func (m *Store) RoutePrice(_ context.Context, from, to string) (model.RoutePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	route, ok := m.routes[[2]string{from, to}]
	if !ok {
		return model.RoutePrice{}, apperr.NotFound("route_not_found")
	}
	return route, nil
}

func (m *Store) UpsertRoute(_ context.Context, route model.RoutePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[[2]string{route.From, route.To}] = route
	return nil
}

// Cache is an in-memory LocationCache.
type Cache struct {
	mu          sync.Mutex
	entries     map[int64]model.LocationReport
	storeErr    error
	invalidated []int64
}

func NewCache() *Cache {
	return &Cache{entries: map[int64]model.LocationReport{}}
}

func (c *Cache) Store(_ context.Context, report model.LocationReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storeErr != nil {
		return c.storeErr
	}
	c.entries[report.ToUserID] = report
	return nil
}

func (c *Cache) Latest(_ context.Context, toUserID int64) (model.LocationReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.entries[toUserID]
	return report, ok, nil
}

func (c *Cache) Invalidate(_ context.Context, toUserID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, toUserID)
	c.invalidated = append(c.invalidated, toUserID)
	return nil
}

// ErrStoreDown is a ready-made failure for SetFailure.
var ErrStoreDown = errors.New("store down")

// SetFailure makes CreateUser, UserExists and AppendLocation fail with err.
// A nil err clears it.
func (m *Store) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *Store) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *Store) ReportCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

// ClearReports forgets stored reports, leaving current locations intact.
func (m *Store) ClearReports() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = nil
}

func (c *Cache) SetStoreError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeErr = err
}

// Invalidated lists the recipients whose entries were invalidated, in order.
func (c *Cache) Invalidated() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.invalidated...)
}
