package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/pkg/metrics"
	"github.com/samirrijal/geomap/internal/pkg/telemetry"
)

// geocodeLookupTimeout bounds a collapsed lookup, including the wait for
// the rate limiter.
const geocodeLookupTimeout = 15 * time.Second

// GeocodeOptions configures a GeocodeService.
type GeocodeOptions struct {
	// Default is the geocoder used when a request names none.
	Default string
	// RatePerSecond bounds outgoing requests per geocoder.
	RatePerSecond float64
	// CacheTTL is the lifetime of cached results, in seconds.
	CacheTTL int
}

// GeocodeService resolves addresses through the configured geocoders,
// sharing results through the cache and collapsing identical requests.
type GeocodeService struct {
	geocoders map[string]ports.Geocoder
	limiters  map[string]*rate.Limiter
	cache     ports.CacheService
	opts      GeocodeOptions
	group     singleflight.Group
	log       *slog.Logger
}

// NewGeocodeService creates a new GeocodeService.
func NewGeocodeService(geocoders []ports.Geocoder, cache ports.CacheService, opts GeocodeOptions, log *slog.Logger) *GeocodeService {
	if log == nil {
		log = slog.Default()
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 86400
	}
	s := &GeocodeService{
		geocoders: make(map[string]ports.Geocoder, len(geocoders)),
		limiters:  make(map[string]*rate.Limiter, len(geocoders)),
		cache:     cache,
		opts:      opts,
		log:       log,
	}
	for _, g := range geocoders {
		s.geocoders[g.Name()] = g
		s.limiters[g.Name()] = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	if s.opts.Default == "" && len(geocoders) > 0 {
		s.opts.Default = geocoders[0].Name()
	}
	return s
}

// Providers returns the names of the configured geocoders.
func (s *GeocodeService) Providers() []string {
	out := make([]string, 0, len(s.geocoders))
	for name := range s.geocoders {
		out = append(out, name)
	}
	return out
}

func geocodeCacheKey(provider, query string, bias domain.Bounds) string {
	key := "geo:geocode:" + provider + ":" + strings.ToLower(strings.TrimSpace(query))
	if !bias.IsZero() {
		key += fmt.Sprintf(":%.2f:%.2f:%.2f:%.2f",
			bias.SouthWest.Lat, bias.SouthWest.Lng, bias.NorthEast.Lat, bias.NorthEast.Lng)
	}
	return key
}

// Geocode resolves address with the named provider, or the default one
// when provider is empty. Failures of the remote service wrap
// domain.ErrNetwork.
func (s *GeocodeService) Geocode(ctx context.Context, address, provider string, bias domain.Bounds) (domain.GeocodeResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.GeocodeResult{}, fmt.Errorf("%w: empty address", domain.ErrFormat)
	}
	if provider == "" {
		provider = s.opts.Default
	}
	g, ok := s.geocoders[provider]
	if !ok {
		return domain.GeocodeResult{}, fmt.Errorf("%w: geocoder %q", domain.ErrUnsupportedProvider, provider)
	}

	key := geocodeCacheKey(provider, address, bias)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var res domain.GeocodeResult
			if err := json.Unmarshal(data, &res); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return res, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	if err := ctx.Err(); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	// The shared lookup outlives any one caller, so a caller giving up does
	// not fail the others waiting on the same key.
	ch := s.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), geocodeLookupTimeout)
		defer cancel()
		return s.lookup(lctx, g, address, bias)
	})
	var res domain.GeocodeResult
	select {
	case <-ctx.Done():
		return domain.GeocodeResult{}, fmt.Errorf("%w: %w", domain.ErrNetwork, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return domain.GeocodeResult{}, r.Err
		}
		res = r.Val.(domain.GeocodeResult)
	}

	if s.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, key, data, s.opts.CacheTTL)
		}
	}
	return res, nil
}

func (s *GeocodeService) lookup(ctx context.Context, g ports.Geocoder, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanGeocode, attributeKV("provider", g.Name()))
	defer span.End()

	if err := s.limiters[g.Name()].Wait(ctx); err != nil {
		metrics.GeocodeRequests.WithLabelValues(g.Name(), "throttled").Inc()
		return domain.GeocodeResult{}, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	start := time.Now()
	res, err := g.Geocode(ctx, address, bias)
	metrics.GeocodeDuration.WithLabelValues(g.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrNotFound) {
			outcome = "no_match"
		}
		metrics.GeocodeRequests.WithLabelValues(g.Name(), outcome).Inc()
		s.log.Warn("geocode failed", "provider", g.Name(), "address", address, "error", err)
		return domain.GeocodeResult{}, err
	}
	metrics.GeocodeRequests.WithLabelValues(g.Name(), "ok").Inc()
	res.Query = address
	res.Provider = g.Name()
	return res, nil
}

// For returns a ports.Geocoder resolving through the service with the named
// provider, so controllers share its cache and limiter.
func (s *GeocodeService) For(provider string) ports.Geocoder {
	return boundGeocoder{svc: s, provider: provider}
}

type boundGeocoder struct {
	svc      *GeocodeService
	provider string
}

func (g boundGeocoder) Name() string { return g.provider }

func (g boundGeocoder) Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
	return g.svc.Geocode(ctx, address, g.provider, bias)
}
