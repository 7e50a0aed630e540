package domain

// Settings are the module-wide geolocation settings.
type Settings struct {
	Provider           string
	APIKey             string
	DefaultCenter      Coordinate
	DefaultZoom        int
	StaticMapURL       string
	DisplayCoordinates bool
	Style              string
	Precision          int
	SummaryCards       bool
}

// StaticMap returns the static map part of the settings.
func (s Settings) StaticMap() StaticMapSettings {
	return StaticMapSettings{
		Provider: s.Provider,
		APIKey:   s.APIKey,
		Template: s.StaticMapURL,
		Zoom:     s.DefaultZoom,
	}
}

// LocationRecord is one display-ready point of a collection map.
type LocationRecord struct {
	Key      string     `json:"key"`
	Title    string     `json:"title"`
	Icon     string     `json:"icon"`
	Position Coordinate `json:"position"`
	Tooltip  string     `json:"tooltip"`
	// Summary is the URL of an asynchronously loaded summary panel. When set,
	// the static tooltip is not shown.
	Summary string `json:"summary,omitempty"`
}

// CreateAffordance lets the user create an entity at a clicked position.
// The "lat,lng" text is appended to URLTemplate.
type CreateAffordance struct {
	URLTemplate string `json:"urlTemplate"`
	Label       string `json:"label"`
}

// URL returns the create URL for position c.
func (a CreateAffordance) URL(c Coordinate) string {
	return a.URLTemplate + c.String()
}

// MapConfig is the render payload of a collection map.
type MapConfig struct {
	ID            string            `json:"id"`
	Provider      ProviderSpec      `json:"provider"`
	Center        Coordinate        `json:"center"`
	Zoom          int               `json:"zoom"`
	Height        int               `json:"height"`
	Locations     []LocationRecord  `json:"locations"`
	Create        *CreateAffordance `json:"create,omitempty"`
	ClassLabel    string            `json:"classLabel,omitempty"`
	ClassIcon     string            `json:"classIcon,omitempty"`
	SearchEnabled bool              `json:"searchEnabled"`
	Scripts       []string          `json:"scripts,omitempty"`
	Stylesheets   []string          `json:"stylesheets,omitempty"`
}

// FieldAttribute is the attribute part of the field-edit payload.
type FieldAttribute struct {
	Code    string `json:"code"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Display bool   `json:"display"`
}

// FieldEditPayload drives the map next to an editable coordinate field.
type FieldEditPayload struct {
	ID        string         `json:"id"`
	Attribute FieldAttribute `json:"attribute"`
	Provider  ProviderSpec   `json:"provider"`
	Center    Coordinate     `json:"center"`
	Zoom      int            `json:"zoom"`
	Value     string         `json:"value"`
	// Fallback is a static map image shown until the interactive map loads.
	Fallback    string   `json:"fallback,omitempty"`
	Scripts     []string `json:"scripts,omitempty"`
	Stylesheets []string `json:"stylesheets,omitempty"`
}

// Widget is a dashboard map definition.
type Widget struct {
	ID        string `json:"id"`
	Height    int    `json:"height"`
	Search    bool   `json:"search"`
	Query     string `json:"query"`
	Attribute string `json:"attribute"`
}

// Widget defaults.
const (
	DefaultWidgetHeight = 600
	DefaultWidgetQuery  = "SELECT Location"
)

// NewWidget returns a widget with default properties.
func NewWidget(id string) Widget {
	return Widget{ID: id, Height: DefaultWidgetHeight, Query: DefaultWidgetQuery}
}

// Cluster rendering parameters shared by the payload and the controller.
const (
	ClusterRadius      = 50
	ClusterZoomOffset  = 3
	ClusterStepMedium  = 100
	ClusterStepLarge   = 750
	ClusterColorSmall  = "#51bbd6"
	ClusterColorMedium = "#f1f075"
	ClusterColorLarge  = "#f28cb1"
)

// ClusterStyle returns the circle colour and radius for a cluster size.
func ClusterStyle(pointCount int) (color string, radius int) {
	switch {
	case pointCount >= ClusterStepLarge:
		return ClusterColorLarge, 40
	case pointCount >= ClusterStepMedium:
		return ClusterColorMedium, 30
	default:
		return ClusterColorSmall, 20
	}
}
