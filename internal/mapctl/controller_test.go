package mapctl_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/mapctl"
	"github.com/samirrijal/geomap/internal/pkg/logging"
)

var (
	googleSpec = domain.ProviderSpec{Kind: domain.KindGoogle, Name: domain.ProviderGoogleMaps, APIKey: "KEY"}
	defaultPos = domain.Coordinate{Lat: 45.157389, Lng: 5.748830}
)

type harness struct {
	sched  *manualScheduler
	fetch  *fakeFetcher
	assets *mapctl.Assets
	rec    *recorder
	geo    *fakeGeocoder
	opened []string
}

func newHarness() *harness {
	f := newFakeFetcher()
	return &harness{
		sched:  &manualScheduler{},
		fetch:  f,
		assets: mapctl.NewAssets(f),
		rec:    &recorder{},
		geo: &fakeGeocoder{fn: func(string) (domain.Coordinate, error) {
			return domain.Coordinate{Lat: 52.3731, Lng: 4.8922}, nil
		}},
	}
}

func (h *harness) options(t *testing.T, spec domain.ProviderSpec) mapctl.Options {
	t.Helper()
	p, err := mapctl.NewProvider(spec, h.assets, h.geo, "EN US")
	require.NoError(t, err)
	return mapctl.Options{
		Provider:  p,
		Scheduler: h.sched,
		Renderer:  h.rec,
		Fetcher:   h.fetch,
		Navigate:  func(url string) { h.opened = append(h.opened, url) },
		Log:       logging.Discard(),
	}
}

func fieldPayload() domain.FieldEditPayload {
	return domain.FieldEditPayload{
		ID:        "field_position",
		Attribute: domain.FieldAttribute{Code: "position", Width: 200, Height: 150, Display: true},
		Provider:  googleSpec,
		Center:    defaultPos,
		Zoom:      17,
	}
}

func readyField(t *testing.T, h *harness, value string) (*mapctl.FieldController, *fakeField) {
	t.Helper()
	field := newFakeField(value)
	c := mapctl.NewFieldController(fieldPayload(), field, h.options(t, googleSpec))
	c.Initialize(context.Background(), nil)
	h.sched.Drain()
	require.True(t, c.State().Ready(), "controller must be ready, got %s", c.State())
	return c, field
}

func TestFieldController_InitializeWithoutValue(t *testing.T) {
	h := newHarness()
	c, field := readyField(t, h, "")

	assert.Equal(t, mapctl.StateMarkerAbsent, c.State())
	assert.Equal(t, defaultPos, c.Viewport().Center)
	assert.Equal(t, float64(17), c.Viewport().Zoom)
	assert.False(t, field.hidden)
	assert.Equal(t, 1, h.rec.count("google.maps.Map"))
}

func TestFieldController_InitializeWithValuePlacesMarker(t *testing.T) {
	h := newHarness()
	c, _ := readyField(t, h, "52.373100,4.892200")

	assert.Equal(t, mapctl.StateMarkerPlaced, c.State())
	m, ok := c.View().Marker(mapctl.FieldMarker)
	require.True(t, ok)
	assert.Equal(t, domain.Coordinate{Lat: 52.3731, Lng: 4.8922}, m.Position)
	assert.Equal(t, m.Position, c.Viewport().Center)
}

func TestFieldController_MalformedValueIsAbsent(t *testing.T) {
	h := newHarness()
	c, field := readyField(t, h, "somewhere in Amsterdam")

	assert.Equal(t, mapctl.StateMarkerAbsent, c.State())
	assert.Equal(t, "somewhere in Amsterdam", field.Value())
}

func TestFieldController_ClickSetsField(t *testing.T) {
	h := newHarness()
	c, field := readyField(t, h, "")

	require.True(t, c.View().Dispatch(mapctl.NativeEvent{Name: "click", Lat: 52.3731, Lng: 4.8922}))

	assert.Equal(t, "52.373100,4.892200", field.Value())
	assert.Equal(t, mapctl.StateMarkerPlaced, c.State())
	assert.Equal(t, domain.Coordinate{Lat: 52.3731, Lng: 4.8922}, c.Viewport().Center)
}

func TestFieldController_MarkerActivateClearsField(t *testing.T) {
	h := newHarness()
	c, field := readyField(t, h, "52.373100,4.892200")

	require.True(t, c.View().Dispatch(mapctl.NativeEvent{Name: "click", Marker: mapctl.FieldMarker}))

	assert.Equal(t, "", field.Value())
	assert.Equal(t, mapctl.StateMarkerAbsent, c.State())
	_, ok := c.View().Marker(mapctl.FieldMarker)
	assert.False(t, ok)
}

func TestFieldController_DragEnd(t *testing.T) {
	h := newHarness()
	c, field := readyField(t, h, "52.373100,4.892200")

	require.True(t, c.View().Dispatch(mapctl.NativeEvent{Name: "dragend", Marker: mapctl.FieldMarker, Lat: 51.9225, Lng: 4.47917}))

	assert.Equal(t, "51.922500,4.479170", field.Value())
	assert.Equal(t, mapctl.StateMarkerPlaced, c.State())
}

func TestFieldController_ExternalChange(t *testing.T) {
	h := newHarness()
	c, field := readyField(t, h, "")

	field.Type("1.5,2.5")
	assert.Equal(t, mapctl.StateMarkerPlaced, c.State())
	m, ok := c.View().Marker(mapctl.FieldMarker)
	require.True(t, ok)
	assert.Equal(t, domain.Coordinate{Lat: 1.5, Lng: 2.5}, m.Position)

	field.Type("not a coordinate")
	assert.Equal(t, mapctl.StateMarkerAbsent, c.State())
	assert.Equal(t, "not a coordinate", field.Value(), "the controller must not rewrite host input")
}

func TestFieldController_LaterClickSupersedesGeocode(t *testing.T) {
	h := newHarness()
	c, field := readyField(t, h, "")

	c.LocateAddress("Dam 1, Amsterdam")
	c.OnMapPrimaryClick(domain.Coordinate{Lat: 10, Lng: 20})
	h.sched.Drain()

	assert.Equal(t, []string{"Dam 1, Amsterdam"}, h.geo.calls)
	assert.Equal(t, "10.000000,20.000000", field.Value())
}

func TestFieldController_GeocodeApplies(t *testing.T) {
	h := newHarness()
	c, field := readyField(t, h, "")

	c.LocateAddress("Dam 1, Amsterdam")
	h.sched.Drain()

	assert.Equal(t, "52.373100,4.892200", field.Value())
	assert.Equal(t, mapctl.StateMarkerPlaced, c.State())
}

func TestFieldController_ProviderLoadFailureStaysInert(t *testing.T) {
	h := newHarness()
	h.fetch.fail[domain.GoogleScriptURL("KEY", "EN US")] = true
	field := newFakeField("1,2")
	c := mapctl.NewFieldController(fieldPayload(), field, h.options(t, googleSpec))

	c.Initialize(context.Background(), nil)
	h.sched.Drain()

	assert.Equal(t, mapctl.StateUninitialized, c.State())
	assert.Nil(t, c.View())
	assert.Empty(t, h.rec.cmds)
	c.OnMapPrimaryClick(domain.Coordinate{Lat: 3, Lng: 4})
	assert.Equal(t, "1,2", field.Value())
}

func TestAssets_LoadedOncePerPage(t *testing.T) {
	h := newHarness()
	for i := 0; i < 3; i++ {
		c := mapctl.NewFieldController(fieldPayload(), newFakeField(""), h.options(t, googleSpec))
		c.Initialize(context.Background(), nil)
	}
	h.sched.Drain()

	assert.Equal(t, 1, h.fetch.calls(domain.GoogleScriptURL("KEY", "EN US")))
}

func TestAssets_FailedLoadIsRetried(t *testing.T) {
	f := newFakeFetcher()
	url := domain.MapLibreScriptURL
	f.fail[url] = true
	assets := mapctl.NewAssets(f)

	require.Error(t, assets.Script(context.Background(), url))
	assert.False(t, assets.Loaded(url))

	f.mu.Lock()
	delete(f.fail, url)
	f.mu.Unlock()

	require.NoError(t, assets.Script(context.Background(), url))
	require.NoError(t, assets.Script(context.Background(), url))
	assert.True(t, assets.Loaded(url))
	assert.Equal(t, 2, f.calls(url))
}

func TestFieldController_RecoversAfterProviderLoadFailure(t *testing.T) {
	h := newHarness()
	script := domain.GoogleScriptURL("KEY", "EN US")
	h.fetch.fail[script] = true

	first := mapctl.NewFieldController(fieldPayload(), newFakeField(""), h.options(t, googleSpec))
	first.Initialize(context.Background(), nil)
	h.sched.Drain()
	require.Equal(t, mapctl.StateUninitialized, first.State())

	delete(h.fetch.fail, script)
	second, _ := readyField(t, h, "")
	assert.Equal(t, mapctl.StateMarkerAbsent, second.State())
	assert.Equal(t, 2, h.fetch.calls(script))
}

func TestNewProvider_StaticIsNotInteractive(t *testing.T) {
	_, err := mapctl.NewProvider(domain.ProviderSpec{Kind: domain.KindStatic, Name: "Bing"}, mapctl.NewAssets(newFakeFetcher()), nil, "EN US")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestBinding_ReplacementKeepsViewport(t *testing.T) {
	h := newHarness()
	field := newFakeField("52.373100,4.892200")
	container := &fakeContainer{}
	opts := h.options(t, googleSpec)

	b := mapctl.NewBinding(container, func() mapctl.Controller {
		return mapctl.NewFieldController(fieldPayload(), field, opts)
	})
	b.Start(context.Background())
	h.sched.Drain()

	first := b.Current().(*mapctl.FieldController)
	require.True(t, first.View().Dispatch(mapctl.NativeEvent{Name: "idle", Lat: 48.8566, Lng: 2.3522, Zoom: 11}))
	want := mapctl.Viewport{Center: domain.Coordinate{Lat: 48.8566, Lng: 2.3522}, Zoom: 11}

	container.Replace()
	h.sched.Drain()

	second := b.Current().(*mapctl.FieldController)
	require.NotSame(t, first, second)
	assert.Equal(t, mapctl.StateClosed, first.State())
	assert.Equal(t, mapctl.StateMarkerPlaced, second.State())
	assert.Equal(t, want, second.Viewport())
	assert.NotEqual(t, defaultPos, second.Viewport().Center)
	assert.Len(t, field.listeners, 1, "old controller must unsubscribe from the field")
	assert.Equal(t, 1, h.rec.count("google.maps.event.clearInstanceListeners"))
	assert.Equal(t, 1, b.Replacements())

	field.Type("1,1")
	m, ok := second.View().Marker(mapctl.FieldMarker)
	require.True(t, ok)
	assert.Equal(t, domain.Coordinate{Lat: 1, Lng: 1}, m.Position)

	b.Close()
	assert.Equal(t, mapctl.StateClosed, second.State())
	assert.Empty(t, field.listeners)
}
