package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/core/usecases"
	"github.com/samirrijal/geomap/internal/pkg/logging"
)

func TestGeocodeService_CachesResults(t *testing.T) {
	g := &mockGeocoder{name: "nominatim"}
	svc := usecases.NewGeocodeService([]ports.Geocoder{g}, newMemCache(),
		usecases.GeocodeOptions{RatePerSecond: 100}, logging.Discard())

	for i := 0; i < 3; i++ {
		res, err := svc.Geocode(context.Background(), "Dam 1, Amsterdam", "", domain.Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Provider != "nominatim" || res.Query != "Dam 1, Amsterdam" {
			t.Errorf("unexpected result %+v", res)
		}
	}
	if g.calls != 1 {
		t.Errorf("expected 1 remote call, got %d", g.calls)
	}
}

func TestGeocodeService_UnknownProvider(t *testing.T) {
	svc := usecases.NewGeocodeService([]ports.Geocoder{&mockGeocoder{name: "nominatim"}}, nil,
		usecases.GeocodeOptions{}, logging.Discard())

	_, err := svc.Geocode(context.Background(), "Dam 1", "bing", domain.Bounds{})
	if !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestGeocodeService_EmptyAddress(t *testing.T) {
	svc := usecases.NewGeocodeService([]ports.Geocoder{&mockGeocoder{name: "nominatim"}}, nil,
		usecases.GeocodeOptions{}, logging.Discard())

	if _, err := svc.Geocode(context.Background(), "   ", "", domain.Bounds{}); !errors.Is(err, domain.ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestGeocodeService_NetworkFailureNotCached(t *testing.T) {
	fail := true
	g := &mockGeocoder{
		name: "google",
		geocodeFn: func(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
			if fail {
				return domain.GeocodeResult{}, fmt.Errorf("%w: status 503", domain.ErrNetwork)
			}
			return domain.GeocodeResult{Position: domain.Coordinate{Lat: 1, Lng: 2}}, nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewGeocodeService([]ports.Geocoder{g}, cache,
		usecases.GeocodeOptions{RatePerSecond: 100}, logging.Discard())

	if _, err := svc.Geocode(context.Background(), "x", "google", domain.Bounds{}); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if len(cache.data) != 0 {
		t.Error("failures must not be cached")
	}

	fail = false
	res, err := svc.Geocode(context.Background(), "x", "google", domain.Bounds{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Position.Lng != 2 {
		t.Errorf("unexpected position %v", res.Position)
	}
}

func TestGeocodeService_CancelledWhileThrottled(t *testing.T) {
	g := &mockGeocoder{name: "nominatim"}
	svc := usecases.NewGeocodeService([]ports.Geocoder{g}, nil,
		usecases.GeocodeOptions{RatePerSecond: 0.001}, logging.Discard())

	if _, err := svc.Geocode(context.Background(), "first", "", domain.Bounds{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Geocode(ctx, "second", "", domain.Bounds{}); !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
	if g.calls != 1 {
		t.Errorf("expected 1 remote call, got %d", g.calls)
	}
}

func TestGeocodeService_CollapsedLookupOutlivesCaller(t *testing.T) {
	entered := make(chan context.Context, 1)
	release := make(chan struct{})
	g := &mockGeocoder{
		name: "nominatim",
		geocodeFn: func(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
			entered <- ctx
			<-release
			if err := ctx.Err(); err != nil {
				return domain.GeocodeResult{}, err
			}
			return domain.GeocodeResult{Position: domain.Coordinate{Lat: 1, Lng: 2}}, nil
		},
	}
	svc := usecases.NewGeocodeService([]ports.Geocoder{g}, nil,
		usecases.GeocodeOptions{RatePerSecond: 100}, logging.Discard())

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Geocode(first, "Dam 1", "", domain.Bounds{})
		firstErr <- err
	}()
	lookupCtx := <-entered

	type result struct {
		res domain.GeocodeResult
		err error
	}
	second := make(chan result, 1)
	go func() {
		res, err := svc.Geocode(context.Background(), "Dam 1", "", domain.Bounds{})
		second <- result{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) || !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected the cancelled caller to get ErrNetwork wrapping context.Canceled, got %v", err)
	}
	if lookupCtx.Err() != nil {
		t.Fatal("the shared lookup must not be cancelled with its first caller")
	}

	close(release)
	select {
	case r := <-second:
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if r.res.Position != (domain.Coordinate{Lat: 1, Lng: 2}) {
			t.Errorf("unexpected result %+v", r.res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second caller never returned")
	}
}
