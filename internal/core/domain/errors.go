package domain

import "errors"

// Every failure in the geolocation subsystem degrades to a simpler
// presentation. Callers classify with errors.Is.
var (
	// ErrFormat marks unparsable coordinate text.
	ErrFormat = errors.New("invalid coordinate format")
	// ErrConfiguration marks a missing key, style or template.
	ErrConfiguration = errors.New("map provider not configured")
	// ErrUnsupportedProvider marks a provider name outside the known set.
	ErrUnsupportedProvider = errors.New("unsupported map provider")
	// ErrDelegate marks a failed host lookup for one record.
	ErrDelegate = errors.New("host delegate failed")
	// ErrNetwork marks a failed geocode, style or summary fetch.
	ErrNetwork = errors.New("network request failed")
	// ErrMissingColumn marks a row lacking one of the attribute's columns.
	ErrMissingColumn = errors.New("missing column")
	// ErrNotFound marks an unknown entity, widget or attribute.
	ErrNotFound = errors.New("not found")
	// ErrNotGeolocation marks an attribute without the geolocation capability.
	ErrNotGeolocation = errors.New("attribute is not a geolocation")
)
