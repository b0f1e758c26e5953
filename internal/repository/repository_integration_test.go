//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/db"
	"github.com/shahdkhalaf/graduation-project/internal/model"
)

func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tracker",
				"POSTGRES_PASSWORD": "tracker",
				"POSTGRES_DB":       "tracker",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	url := fmt.Sprintf("postgres://tracker:tracker@%s:%s/tracker?sslmode=disable", host, port.Port())

	pool, err := db.NewPool(ctx, url, 20)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db.NewStore(pool, db.Options{QueryTimeout: 5 * time.Second}))
}

func createUser(t *testing.T, store *Store, email string) model.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), model.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "First",
		LastName:     "Last",
		Age:          30,
		Gender:       "female",
		District:     "Maadi",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func TestPostgresTrackingWorkflow(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()

	a := createUser(t, store, "a@example.com")
	b := createUser(t, store, "B@Example.com")

	if _, err := store.CreateUser(ctx, model.User{Email: "a@example.com", PasswordHash: "x", FirstName: "x", LastName: "x", Age: 1, Gender: "x", District: "x"}); !errors.Is(err, apperr.Conflict("email_exists")) {
		t.Fatalf("expected email_exists, got %v", err)
	}
	if got, err := store.GetUserByEmail(ctx, "b@example.com"); err != nil || got.ID != b.ID {
		t.Fatalf("expected lower-cased email lookup, got %+v %v", got, err)
	}

	// Parallel sends for the same pair leave exactly one Pending row.
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, conflicts := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreatePendingRequest(ctx, a.ID, b.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperr.KindOf(err) == apperr.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || conflicts != 15 {
		t.Fatalf("expected 1 created and 15 conflicts, got %d and %d", created, conflicts)
	}

	if _, err := store.CreatePendingRequest(ctx, a.ID, 999999); !errors.Is(err, apperr.NotFound("user_not_found")) {
		t.Fatalf("expected user_not_found, got %v", err)
	}

	incoming, err := store.ListIncomingRequests(ctx, b.ID, []model.TrackingStatus{model.StatusPending, model.StatusAccepted})
	if err != nil || len(incoming) != 1 || incoming[0].FromUserID != a.ID {
		t.Fatalf("unexpected incoming %+v %v", incoming, err)
	}

	// Only the recipient pair matches; a wrong pair never mutates.
	if _, err := store.ResolvePendingRequest(ctx, b.ID, a.ID, model.StatusAccepted); !errors.Is(err, apperr.NotFound("request_not_found")) {
		t.Fatalf("expected request_not_found, got %v", err)
	}
	accepted, err := store.ResolvePendingRequest(ctx, a.ID, b.ID, model.StatusAccepted)
	if err != nil || accepted.Status != model.StatusAccepted {
		t.Fatalf("unexpected accept result %+v %v", accepted, err)
	}
	if _, err := store.ResolvePendingRequest(ctx, a.ID, b.ID, model.StatusRejected); !errors.Is(err, apperr.NotFound("request_not_found")) {
		t.Fatalf("expected resolved request to stay resolved, got %v", err)
	}
	ok, err := store.HasAcceptedRelation(ctx, b.ID, a.ID)
	if err != nil || !ok {
		t.Fatalf("expected accepted relation in reverse direction, got %v %v", ok, err)
	}

	if _, err := store.CreatePendingRequest(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("expected new pending after resolution: %v", err)
	}
	outgoing, err := store.ListOutgoingRequests(ctx, a.ID)
	if err != nil || len(outgoing) != 2 {
		t.Fatalf("unexpected outgoing %+v %v", outgoing, err)
	}
}

func TestPostgresLocations(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()

	a := createUser(t, store, "a@example.com")
	b := createUser(t, store, "b@example.com")

	if _, err := store.LatestLocationFor(ctx, b.ID); !errors.Is(err, apperr.NotFound("location_not_found")) {
		t.Fatalf("expected location_not_found, got %v", err)
	}

	var last model.LocationReport
	for i := 0; i < 3; i++ {
		report, err := store.AppendLocation(ctx, model.LocationReport{
			FromUserID: a.ID,
			ToUserID:   b.ID,
			Latitude:   30.0 + float64(i),
			Longitude:  31.2,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		last = report
	}

	latest, err := store.LatestLocationFor(ctx, b.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != last.ID || latest.Latitude != 32.0 || latest.Longitude != 31.2 {
		t.Fatalf("unexpected latest %+v", latest)
	}

	current, err := store.CurrentLocation(ctx, a.ID)
	if err != nil || current.Latitude != 32.0 {
		t.Fatalf("unexpected current %+v %v", current, err)
	}

	if _, err := store.AppendLocation(ctx, model.LocationReport{FromUserID: a.ID, ToUserID: 424242, Latitude: 1, Longitude: 1}); !errors.Is(err, apperr.NotFound("user_not_found")) {
		t.Fatalf("expected user_not_found, got %v", err)
	}
	// The failed append rolled back its upsert.
	current, err = store.CurrentLocation(ctx, a.ID)
	if err != nil || current.Latitude != 32.0 {
		t.Fatalf("expected rolled back current location, got %+v %v", current, err)
	}
}

func TestPostgresRoutes(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()

	if _, err := store.RoutePrice(ctx, "Maadi", "Zamalek"); !errors.Is(err, apperr.NotFound("route_not_found")) {
		t.Fatalf("expected route_not_found, got %v", err)
	}
	if err := store.UpsertRoute(ctx, model.RoutePrice{From: "Maadi", To: "Zamalek", Cost: 45.5, Currency: "EGP"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	price, err := store.RoutePrice(ctx, "Maadi", "Zamalek")
	if err != nil || price.Cost != 45.5 || price.Currency != "EGP" {
		t.Fatalf("unexpected price %+v %v", price, err)
	}
}
