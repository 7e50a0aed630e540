package telemetry

// Span names shared by the services that trace geolocation work.
const (
	SpanCollect       = "geomap.collect_locations"
	SpanBuildWidget   = "geomap.build_widget_config"
	SpanBuildField    = "geomap.build_field_payload"
	SpanGeocode       = "geomap.geocode"
	SpanSetCoordinate = "geomap.set_coordinate"
)
