package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
	Geolocation GeolocationConfig `mapstructure:"geolocation"`
	Geocoding   GeocodingConfig   `mapstructure:"geocoding"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AppRoot      string `mapstructure:"app_root"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// GeolocationConfig holds the module settings of the map feature.
type GeolocationConfig struct {
	Provider           string  `mapstructure:"provider"`
	APIKey             string  `mapstructure:"api_key"`
	DefaultLatitude    float64 `mapstructure:"default_latitude"`
	DefaultLongitude   float64 `mapstructure:"default_longitude"`
	DefaultZoom        int     `mapstructure:"default_zoom"`
	StaticMapURL       string  `mapstructure:"staticmapurl"`
	DisplayCoordinates bool    `mapstructure:"display_coordinates"`
	Style              string  `mapstructure:"style"`
	Precision          int     `mapstructure:"precision"`
	SummaryCards       bool    `mapstructure:"summary_cards"`
}

// Settings converts the configuration into domain settings.
func (g GeolocationConfig) Settings() domain.Settings {
	return domain.Settings{
		Provider:           g.Provider,
		APIKey:             g.APIKey,
		DefaultCenter:      domain.Coordinate{Lat: g.DefaultLatitude, Lng: g.DefaultLongitude},
		DefaultZoom:        g.DefaultZoom,
		StaticMapURL:       g.StaticMapURL,
		DisplayCoordinates: g.DisplayCoordinates,
		Style:              g.Style,
		Precision:          g.Precision,
		SummaryCards:       g.SummaryCards,
	}
}

// GeocodingConfig configures the server-side geocoders.
type GeocodingConfig struct {
	// Default names the geocoder used when a request names none.
	Default        string  `mapstructure:"default"`
	NominatimURL   string  `mapstructure:"nominatim_url"`
	GoogleAPIKey   string  `mapstructure:"google_api_key"`
	MapTilerAPIKey string  `mapstructure:"maptiler_api_key"`
	UserAgent      string  `mapstructure:"user_agent"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	CacheTTL       int     `mapstructure:"cache_ttl"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.app_root", "/")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geomap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geomap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "geomap-propagation")
	v.SetDefault("geolocation.provider", domain.ProviderGoogleMaps)
	v.SetDefault("geolocation.api_key", "")
	v.SetDefault("geolocation.default_latitude", 45.157389)
	v.SetDefault("geolocation.default_longitude", 5.748830)
	v.SetDefault("geolocation.default_zoom", 17)
	v.SetDefault("geolocation.staticmapurl", "")
	v.SetDefault("geolocation.display_coordinates", true)
	v.SetDefault("geolocation.style", "")
	v.SetDefault("geolocation.precision", domain.DefaultPrecision)
	v.SetDefault("geolocation.summary_cards", true)
	v.SetDefault("geocoding.default", "nominatim")
	v.SetDefault("geocoding.google_api_key", "")
	v.SetDefault("geocoding.maptiler_api_key", "")
	v.SetDefault("geocoding.nominatim_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocoding.user_agent", "geomap/1.0")
	v.SetDefault("geocoding.rate_per_second", 1.0)
	v.SetDefault("geocoding.timeout_seconds", 5)
	v.SetDefault("geocoding.cache_ttl", 86400)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOMAP_GEOLOCATION_API_KEY → geolocation.api_key
	v.SetEnvPrefix("GEOMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	g := c.Geolocation
	if _, err := domain.NewCoordinate(g.DefaultLatitude, g.DefaultLongitude); err != nil {
		errs = append(errs, fmt.Sprintf("geolocation default center: %v", err))
	}
	if g.DefaultZoom < 0 || g.DefaultZoom > 22 {
		errs = append(errs, fmt.Sprintf("geolocation.default_zoom must be 0-22, got %d", g.DefaultZoom))
	}
	if g.Precision != 6 && g.Precision != 8 {
		errs = append(errs, fmt.Sprintf("geolocation.precision must be 6 or 8, got %d", g.Precision))
	}
	if c.Geocoding.RatePerSecond <= 0 {
		errs = append(errs, "geocoding.rate_per_second must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
