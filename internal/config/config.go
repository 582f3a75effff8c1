package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"

	"campus-wayfinding/internal/gis/routing"
	"campus-wayfinding/internal/heading"
	"campus-wayfinding/internal/navigation"
)

type Env string

const (
	EnvProd Env = "prod"
	EnvDev  Env = "dev"
)

func (e Env) IsValid() bool {
	switch e {
	case EnvProd, EnvDev:
		return true
	}
	return false
}

type Config struct {
	APIServerHost string `env:"API_SERVER_HOST"`
	APIServerPort string `env:"API_SERVER_PORT" envDefault:"8080" validate:"required"`
	StaticDir     string `env:"STATIC_DIR"`
	DirectoryFile string `env:"DIRECTORY_FILE" envDefault:"data/campus.yml" validate:"required"`

	RedisHost             string        `env:"REDIS_HOST"`
	RedisPort             string        `env:"REDIS_PORT" envDefault:"6379"`
	RedisDirectoryChannel string        `env:"REDIS_DIRECTORY_CHANNEL" envDefault:"directory"`
	RouteCacheTTL         time.Duration `env:"ROUTE_CACHE_TTL" envDefault:"10m"`

	DirectionsBaseURL     string        `env:"DIRECTIONS_BASE_URL" envDefault:"https://api.mapbox.com" validate:"required,url"`
	DirectionsAccessToken string        `env:"DIRECTIONS_ACCESS_TOKEN"`
	DirectionsTimeout     time.Duration `env:"DIRECTIONS_TIMEOUT" envDefault:"7s" validate:"gt=0"`

	MinMovementMeters         float64                   `env:"MIN_MOVEMENT_METERS" envDefault:"3" validate:"gte=0"`
	MaxAccuracyMeters         float64                   `env:"MAX_ACCURACY_METERS" envDefault:"0" validate:"gte=0"`
	ArrivalRadiusMeters       float64                   `env:"ARRIVAL_RADIUS_METERS" envDefault:"10" validate:"gt=0"`
	ProgressPolicy            navigation.ProgressPolicy `env:"PROGRESS_POLICY" envDefault:"monotonic"`
	RegressionToleranceMeters float64                   `env:"REGRESSION_TOLERANCE_METERS" envDefault:"15" validate:"gte=0"`

	HeadingWindow           int           `env:"HEADING_WINDOW" envDefault:"5" validate:"gte=1"`
	HeadingBlend            float64       `env:"HEADING_BLEND" envDefault:"0.5" validate:"gt=0,lte=1"`
	HeadingMinChangeDegrees float64       `env:"HEADING_MIN_CHANGE_DEGREES" envDefault:"3" validate:"gte=0"`
	HeadingMinInterval      time.Duration `env:"HEADING_MIN_INTERVAL" envDefault:"250ms" validate:"gte=0"`
	CompassStaleAfter       time.Duration `env:"COMPASS_STALE_AFTER" envDefault:"2s" validate:"gt=0"`

	// Campus fallback used when a building has no company registered.
	FallbackLon float64 `env:"FALLBACK_LON" envDefault:"6.8143" validate:"gte=-180,lte=180"`
	FallbackLat float64 `env:"FALLBACK_LAT" envDefault:"51.2187" validate:"gte=-90,lte=90"`

	Env Env `env:"ENV" envDefault:"prod"`
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Env.IsValid() {
		return nil, fmt.Errorf("invalid env variable (must be 'prod' or 'dev')")
	}
	if !cfg.ProgressPolicy.IsValid() {
		return nil, fmt.Errorf("invalid progress policy %q (must be 'monotonic' or 'tolerant')", cfg.ProgressPolicy)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// RedisEnabled reports whether the route cache and directory subscriber should run.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func (c *Config) Fallback() orb.Point {
	return orb.Point{c.FallbackLon, c.FallbackLat}
}

func (c *Config) NavigationOptions() navigation.Options {
	opts := navigation.DefaultOptions()
	opts.Tracking = navigation.TrackingConfig{
		ArrivalRadius:       c.ArrivalRadiusMeters,
		Policy:              c.ProgressPolicy,
		RegressionTolerance: c.RegressionToleranceMeters,
	}
	opts.MinMovement = c.MinMovementMeters
	opts.MaxAccuracy = c.MaxAccuracyMeters
	opts.Heading = heading.Config{
		Window:            c.HeadingWindow,
		Blend:             c.HeadingBlend,
		MinChange:         c.HeadingMinChangeDegrees,
		MinInterval:       c.HeadingMinInterval,
		CompassStaleAfter: c.CompassStaleAfter,
	}
	return opts
}

func (c *Config) DirectionsOptions() routing.ClientOptions {
	return routing.ClientOptions{Timeout: c.DirectionsTimeout}
}
