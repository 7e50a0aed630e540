package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// EntityRef identifies one host entity.
type EntityRef struct {
	Class string `json:"class"`
	Key   string `json:"key"`
}

func (r EntityRef) String() string { return r.Class + "::" + r.Key }

// Entity is a query result row as seen by the geolocation subsystem.
type Entity struct {
	Ref  EntityRef `json:"ref"`
	Name string    `json:"name"`
	Icon string    `json:"icon,omitempty"`
	// Coordinates holds the parsed geolocation attributes by code. An
	// attribute without a value is absent from the map.
	Coordinates map[string]Coordinate `json:"coordinates,omitempty"`
	// Fields holds the text rendering of list attributes by code.
	Fields map[string]string `json:"fields,omitempty"`
}

// Coordinate returns the value of a geolocation attribute.
func (e Entity) Coordinate(code string) (Coordinate, bool) {
	c, ok := e.Coordinates[code]
	return c, ok
}

// Condition is one "field = value" filter of an EntityQuery.
type Condition struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// EntityQuery is the declarative query of a collection map, in the form
// "SELECT <Class> [WHERE <field> = '<value>' [AND ...]]".
type EntityQuery struct {
	Class string      `json:"class"`
	Where []Condition `json:"where,omitempty"`
	Limit int         `json:"limit,omitempty"`
}

// ParseQuery parses the query text stored in a widget definition.
func ParseQuery(text string) (EntityQuery, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 2 || !strings.EqualFold(fields[0], "SELECT") {
		return EntityQuery{}, fmt.Errorf("%w: query must start with SELECT <class>: %q", ErrFormat, text)
	}
	q := EntityQuery{Class: fields[1]}
	rest := fields[2:]
	if len(rest) == 0 {
		return q, nil
	}
	if !strings.EqualFold(rest[0], "WHERE") {
		return EntityQuery{}, fmt.Errorf("%w: unexpected %q after class", ErrFormat, rest[0])
	}
	for _, clause := range andPattern.Split(strings.Join(rest[1:], " "), -1) {
		field, value, ok := strings.Cut(clause, "=")
		if !ok {
			return EntityQuery{}, fmt.Errorf("%w: condition %q", ErrFormat, clause)
		}
		field = strings.TrimSpace(field)
		value = strings.Trim(strings.TrimSpace(value), `'"`)
		if field == "" {
			return EntityQuery{}, fmt.Errorf("%w: condition %q", ErrFormat, clause)
		}
		q.Where = append(q.Where, Condition{Field: field, Value: value})
	}
	return q, nil
}

var andPattern = regexp.MustCompile(`(?i)\s+AND\s+`)

// LocationChanged is published after a geolocation attribute is written.
type LocationChanged struct {
	Entity    EntityRef   `json:"entity"`
	Attribute string      `json:"attribute"`
	Value     *Coordinate `json:"value"`
	RD        *RDPoint    `json:"rd,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

// Text returns the bound-field text for the new value.
func (e LocationChanged) Text() string {
	if e.Value == nil {
		return ""
	}
	return e.Value.String()
}

// LocationSubmission asks for a geolocation attribute to be written
// asynchronously. Text follows the edit-field format; empty clears.
type LocationSubmission struct {
	Entity      EntityRef `json:"entity"`
	Attribute   string    `json:"attribute"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ID identifies the attribute the submission writes.
func (s LocationSubmission) ID() string {
	return s.Entity.String() + ":" + s.Attribute
}

// GeocodeResult is one forward geocoding match.
type GeocodeResult struct {
	Query       string     `json:"query"`
	Position    Coordinate `json:"position"`
	DisplayName string     `json:"display_name,omitempty"`
	Provider    string     `json:"provider"`
	// DistanceMeters is set when the request was biased around a point.
	DistanceMeters *float64 `json:"distance_m,omitempty"`
}
