package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Backend (OCR expense analysis) config
	Backend BackendConfig `yaml:"backend"`

	// Extraction config, threaded explicitly into the engine
	Extraction ExtractionConfig `yaml:"extraction"`
}

// BackendConfig holds the settings for the remote expense-analysis backend
// and the object storage bucket documents are staged in.
type BackendConfig struct {
	Region       string  `yaml:"region"`
	Bucket       string  `yaml:"bucket"`
	Prefix       string  `yaml:"prefix"`
	PollSeconds  float64 `yaml:"poll_seconds"`
	MaxPollLoops int     `yaml:"max_poll_loops"`
}

// ExtractionConfig carries the knobs of the normalization engine. It is
// passed down the call chain, never read from ambient process state.
type ExtractionConfig struct {
	// DefaultCurrency is used when no currency hint can be detected
	// (ISO 4217 code, e.g. "USD").
	DefaultCurrency string `yaml:"default_currency"`
	// DateOrder resolves ambiguous slash dates: "MDY" (01/02/2006 is
	// January 2nd) or "DMY" (February 1st).
	DateOrder string `yaml:"date_order"`
}

// DefaultExtractionConfig is the engine configuration used when the config
// file leaves the extraction section empty.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		DefaultCurrency: "USD",
		DateOrder:       "MDY",
	}
}
