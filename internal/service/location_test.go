package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/service/servicetest"
)

func ptr[T any](v T) *T { return &v }

func acceptedPair(t *testing.T, store *servicetest.Store) (int64, int64) {
	t.Helper()
	a, b := store.AddUser("a@example.com"), store.AddUser("b@example.com")
	tracking := NewTracking(store, nil)
	if _, err := tracking.SendRequest(context.Background(), b.ID, a.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := tracking.UpdateRequest(context.Background(), a.ID, b.ID, 1, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return a.ID, b.ID
}

func TestReportThenLatest(t *testing.T) {
	store := servicetest.NewStore()
	a, b := acceptedPair(t, store)
	svc := NewLocation(store, nil, true)
	ctx := context.Background()

	if _, err := svc.Latest(ctx, b); !errors.Is(err, apperr.NotFound("location_not_found")) {
		t.Fatalf("expected location_not_found, got %v", err)
	}
	if _, err := svc.Report(ctx, a, ReportInput{ToUserID: ptr(b), Latitude: ptr(30.0444), Longitude: ptr(31.2357)}); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := svc.Report(ctx, a, ReportInput{ToUserID: ptr(b), Latitude: ptr(30.05), Longitude: ptr(31.24)}); err != nil {
		t.Fatalf("report: %v", err)
	}

	latest, err := svc.Latest(ctx, b)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Latitude != 30.05 || latest.Longitude != 31.24 || latest.FromUserID != a {
		t.Fatalf("expected most recent report, got %+v", latest)
	}

	current, err := svc.Current(ctx, b, a)
	if err != nil || current.Latitude != 30.05 {
		t.Fatalf("expected current location of the reporter, got %+v %v", current, err)
	}
}

func TestReportValidation(t *testing.T) {
	store := servicetest.NewStore()
	a, b := acceptedPair(t, store)
	svc := NewLocation(store, nil, true)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ReportInput
		code string
	}{
		{"missing recipient", ReportInput{Latitude: ptr(1.0), Longitude: ptr(1.0)}, "missing_fields"},
		{"missing latitude", ReportInput{ToUserID: ptr(b), Longitude: ptr(1.0)}, "missing_fields"},
		{"self", ReportInput{ToUserID: ptr(a), Latitude: ptr(1.0), Longitude: ptr(1.0)}, "self_tracking"},
		{"latitude range", ReportInput{ToUserID: ptr(b), Latitude: ptr(91.0), Longitude: ptr(1.0)}, "invalid_latitude"},
		{"longitude range", ReportInput{ToUserID: ptr(b), Latitude: ptr(1.0), Longitude: ptr(-180.5)}, "invalid_longitude"},
		{"nan", ReportInput{ToUserID: ptr(b), Latitude: ptr(math.NaN()), Longitude: ptr(1.0)}, "invalid_latitude"},
	}
	for _, tc := range cases {
		if _, err := svc.Report(ctx, a, tc.in); apperr.CodeOf(err) != tc.code {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.code, err)
		}
	}

	// Zero is a valid coordinate.
	if _, err := svc.Report(ctx, a, ReportInput{ToUserID: ptr(b), Latitude: ptr(0.0), Longitude: ptr(0.0)}); err != nil {
		t.Fatalf("expected zero coordinates to be accepted: %v", err)
	}
}

func TestReportRequiresAcceptedRelation(t *testing.T) {
	store := servicetest.NewStore()
	a, b := store.AddUser("a@example.com"), store.AddUser("b@example.com")
	ctx := context.Background()
	in := ReportInput{ToUserID: ptr(b.ID), Latitude: ptr(1.0), Longitude: ptr(1.0)}

	if _, err := NewLocation(store, nil, true).Report(ctx, a.ID, in); !errors.Is(err, apperr.Forbidden("tracking_not_accepted")) {
		t.Fatalf("expected tracking_not_accepted, got %v", err)
	}
	if store.ReportCount() != 0 {
		t.Fatalf("rejected report must not be stored")
	}
	if _, err := NewLocation(store, nil, false).Report(ctx, a.ID, in); err != nil {
		t.Fatalf("expected report without relation check: %v", err)
	}
	if _, err := NewLocation(store, nil, true).Current(ctx, a.ID, b.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden current lookup, got %v", err)
	}
}

func TestLatestServedFromCache(t *testing.T) {
	store := servicetest.NewStore()
	a, b := acceptedPair(t, store)
	cache := servicetest.NewCache()
	svc := NewLocation(store, cache, true)
	ctx := context.Background()

	report, err := svc.Report(ctx, a, ReportInput{ToUserID: ptr(b), Latitude: ptr(10.0), Longitude: ptr(20.0)})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if cached, ok, _ := cache.Latest(ctx, b); !ok || cached.ID != report.ID {
		t.Fatalf("expected report to be cached after commit")
	}

	store.ClearReports()
	latest, err := svc.Latest(ctx, b)
	if err != nil || latest.ID != report.ID {
		t.Fatalf("expected cache hit, got %+v %v", latest, err)
	}
}

func TestCacheWriteFailureInvalidates(t *testing.T) {
	store := servicetest.NewStore()
	a, b := acceptedPair(t, store)
	cache := servicetest.NewCache()
	svc := NewLocation(store, cache, true)
	ctx := context.Background()

	if _, err := svc.Report(ctx, a, ReportInput{ToUserID: ptr(b), Latitude: ptr(1.0), Longitude: ptr(1.0)}); err != nil {
		t.Fatalf("report: %v", err)
	}
	cache.SetStoreError(errors.New("redis down"))
	if _, err := svc.Report(ctx, a, ReportInput{ToUserID: ptr(b), Latitude: ptr(2.0), Longitude: ptr(2.0)}); err != nil {
		t.Fatalf("cache failure must not fail the report: %v", err)
	}
	if got := cache.Invalidated(); len(got) != 1 || got[0] != b {
		t.Fatalf("expected stale entry to be invalidated, got %v", got)
	}
	latest, err := svc.Latest(ctx, b)
	if err != nil || latest.Latitude != 2.0 {
		t.Fatalf("expected database read after invalidation, got %+v %v", latest, err)
	}
}

func TestReportStoreFailure(t *testing.T) {
	store := servicetest.NewStore()
	a, b := acceptedPair(t, store)
	store.SetFailure(servicetest.ErrStoreDown)
	svc := NewLocation(store, servicetest.NewCache(), true)
	if _, err := svc.Report(context.Background(), a, ReportInput{ToUserID: ptr(b), Latitude: ptr(1.0), Longitude: ptr(1.0)}); !errors.Is(err, servicetest.ErrStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}
