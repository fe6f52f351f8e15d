// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath points at the SQLite attendance database file.
	DBPath string `koanf:"db_path"`

	// FlushIntervalMS throttles resolver updates: pending detections drain
	// once per interval instead of per event.
	FlushIntervalMS int `koanf:"flush_interval_ms"`

	// RecentLogSize caps the observational recent-detections list.
	RecentLogSize int `koanf:"recent_log_size"`

	// PageSizeMin, PageSizeMax and PageSizeDefault bound history pagination.
	PageSizeMin     int `koanf:"page_size_min"`
	PageSizeMax     int `koanf:"page_size_max"`
	PageSizeDefault int `koanf:"page_size_default"`

	// ManualConfidence is the score assigned to operator-entered marks. It
	// should sit at the top of the sensor's confidence scale so a manual
	// mark beats any automatic detection.
	ManualConfidence float64 `koanf:"manual_confidence"`

	// LatePolicy decides what happens to a "late" input status:
	// "collapse_late" maps it to present, "keep_late" stores it as-is.
	LatePolicy string `koanf:"late_policy"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":8080",
		DBPath:           "attendance.db",
		FlushIntervalMS:  300,
		RecentLogSize:    30,
		PageSizeMin:      10,
		PageSizeMax:      100,
		PageSizeDefault:  20,
		ManualConfidence: 1.0,
		LatePolicy:       "collapse_late",
	}
}
