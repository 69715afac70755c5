// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings for both binaries, populated from environment
// variables. Each binary validates only the sections it uses.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration

	// Vessel-side settings (cmd/crowd-depth).
	DatabasePath    string
	ArchiveURL      string
	VesselUUID      string
	VesselName      string
	VesselType      string
	VesselLength    float64
	VesselMMSI      string
	VesselIMO       string
	VesselToken     string
	Anonymous       bool
	ReportInterval  time.Duration
	ReportStart     time.Time
	SubmitTimeout   time.Duration
	HistoryURL      string
	CoordPrecision  int
	DepthPrecision  int

	// Sensor installation, meters in the vessel body frame.
	SounderMake      string
	SounderModel     string
	SounderX         float64
	SounderY         float64
	SounderZ         float64
	SounderDraft     float64
	SounderFrequency float64
	GNSSMake         string
	GNSSModel        string
	GNSSX            float64
	GNSSY            float64
	GNSSZ            float64

	// Ingestion transport (optional, Kafka).
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Proxy-side settings (cmd/depth-proxy).
	IdentitySecret  string
	UpstreamURL     string
	UpstreamToken   string
	UpstreamTimeout time.Duration
	S3Endpoint      string
	S3Region        string
	S3AccessKeyID   string
	S3SecretKey     string
	S3Bucket        string
	S3UseSSL        bool
}

// Load reads configuration from environment variables and .env, applying
// defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	reportInterval, err := parseDuration("REPORT_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	submitTimeout, err := parseDuration("SUBMIT_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}
	upstreamTimeout, err := parseDuration("UPSTREAM_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}

	reportStart, err := parseTime("REPORT_START")
	if err != nil {
		return nil, err
	}

	coordPrecision, err := parseInt("COORD_PRECISION", 5)
	if err != nil {
		return nil, err
	}
	depthPrecision, err := parseInt("DEPTH_PRECISION", 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabasePath:   envOrDefault("DB_PATH", "bathymetry.sqlite"),
		ArchiveURL:     os.Getenv("ARCHIVE_URL"),
		VesselUUID:     os.Getenv("VESSEL_UUID"),
		VesselName:     os.Getenv("VESSEL_NAME"),
		VesselType:     os.Getenv("VESSEL_TYPE"),
		VesselMMSI:     os.Getenv("VESSEL_MMSI"),
		VesselIMO:      os.Getenv("VESSEL_IMO"),
		VesselToken:    os.Getenv("VESSEL_TOKEN"),
		Anonymous:      os.Getenv("ANONYMOUS") == "true",
		ReportInterval: reportInterval,
		ReportStart:    reportStart,
		SubmitTimeout:  submitTimeout,
		HistoryURL:     os.Getenv("HISTORY_URL"),
		CoordPrecision: coordPrecision,
		DepthPrecision: depthPrecision,

		SounderMake:  os.Getenv("SOUNDER_MAKE"),
		SounderModel: os.Getenv("SOUNDER_MODEL"),
		GNSSMake:     os.Getenv("GNSS_MAKE"),
		GNSSModel:    os.Getenv("GNSS_MODEL"),

		KafkaBrokers: parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "bathymetry-observations"),
		KafkaGroupID: envOrDefault("KAFKA_GROUP_ID", "crowd-depth"),

		IdentitySecret:  os.Getenv("IDENTITY_SECRET"),
		UpstreamURL:     os.Getenv("UPSTREAM_URL"),
		UpstreamToken:   os.Getenv("UPSTREAM_TOKEN"),
		UpstreamTimeout: upstreamTimeout,
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        os.Getenv("S3_REGION"),
		S3AccessKeyID:   os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:     os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3UseSSL:        envOrDefault("S3_USE_SSL", "true") == "true",
	}

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"VESSEL_LENGTH", &cfg.VesselLength},
		{"SOUNDER_X", &cfg.SounderX},
		{"SOUNDER_Y", &cfg.SounderY},
		{"SOUNDER_Z", &cfg.SounderZ},
		{"SOUNDER_DRAFT", &cfg.SounderDraft},
		{"SOUNDER_FREQUENCY", &cfg.SounderFrequency},
		{"GNSS_X", &cfg.GNSSX},
		{"GNSS_Y", &cfg.GNSSY},
		{"GNSS_Z", &cfg.GNSSZ},
	} {
		v, err := parseFloat(f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	return cfg, nil
}

// ValidateVessel checks the settings cmd/crowd-depth requires.
func (c *Config) ValidateVessel() error {
	if c.ArchiveURL == "" {
		return errors.New("ARCHIVE_URL is required")
	}
	if c.VesselUUID == "" {
		return errors.New("VESSEL_UUID is required")
	}
	if c.CoordPrecision < 0 || c.DepthPrecision < 0 {
		return errors.New("precision must not be negative")
	}
	return nil
}

// ValidateProxy checks the settings cmd/depth-proxy requires.
func (c *Config) ValidateProxy() error {
	if c.IdentitySecret == "" {
		return errors.New("IDENTITY_SECRET is required")
	}
	if c.UpstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	if c.UpstreamToken == "" {
		return errors.New("UPSTREAM_TOKEN is required")
	}
	if c.S3Endpoint == "" || c.S3Bucket == "" {
		return errors.New("S3_ENDPOINT and S3_BUCKET are required")
	}
	return nil
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parseInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

func parseFloat(name string) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func parseTime(name string) (time.Time, error) {
	s := os.Getenv(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s", name)
	}
	return t, nil
}
