package usecases

import "fmt"

// Dictionary keys used by the map feature.
const (
	MsgClickToCreate = "UI:ClickToCreateNew"
	MsgUndefined     = "UI:UndefinedObject"
	MsgSearchAddress = "UI:Geolocation:SearchAddress"
	MsgGeocodeFailed = "UI:Geolocation:GeocodeFailed"
)

// Dictionary is an in-memory ports.Localizer. Missing keys render as the key.
type Dictionary map[string]string

// EnglishDictionary returns the built-in English entries.
func EnglishDictionary() Dictionary {
	return Dictionary{
		MsgClickToCreate: "Click to create a new %s",
		MsgUndefined:     "undefined",
		MsgSearchAddress: "Search an address",
		MsgGeocodeFailed: "Geocode was not successful: %s",
	}
}

// Translate formats the entry for key with args.
func (d Dictionary) Translate(key string, args ...any) string {
	format, ok := d[key]
	if !ok {
		format = key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
