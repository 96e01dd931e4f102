// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionBackend identifies the converter that turns legacy documents
// into their modern equivalents.
type ConversionBackend string

const (
	BackendLibreOffice ConversionBackend = "libreoffice"
	BackendRemote      ConversionBackend = "remote"
)

// OriginalPolicy controls what happens to a source file after it has been
// converted successfully.
type OriginalPolicy string

const (
	OriginalsPreserve OriginalPolicy = "preserve"
	OriginalsRemove   OriginalPolicy = "remove"
)

// Defaults for ConversionConfig. The timeout constants scale the per-file
// deadline with file size: base + perMB*MiB, capped at max.
const (
	DefaultTimeoutBase  = 60 * time.Second
	DefaultTimeoutPerMB = 30 * time.Second
	DefaultTimeoutMax   = 600 * time.Second
	DefaultDestRoot     = "processed"
	DefaultSofficePath  = "soffice"
	DefaultXvfbPath     = "Xvfb"
	DefaultMaxDisplays  = 4
	DefaultConcurrency  = 1
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// DestRoot is the root under which cycle_<n>/<date>/<unit> is computed.
	DestRoot string `json:"dest_root" yaml:"dest_root" mapstructure:"dest_root"`

	// UseHeadless wraps LibreOffice in an Xvfb virtual display.
	UseHeadless bool `json:"use_headless" yaml:"use_headless" mapstructure:"use_headless"`

	// Backend selects the converter: libreoffice or remote.
	Backend ConversionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// SofficePath is the LibreOffice binary (name on PATH or absolute path).
	SofficePath string `json:"soffice_path" yaml:"soffice_path" mapstructure:"soffice_path"`

	// XvfbPath is the Xvfb binary used in headless mode.
	XvfbPath string `json:"xvfb_path" yaml:"xvfb_path" mapstructure:"xvfb_path"`

	// MaxDisplays bounds the Xvfb display pool (default 4).
	MaxDisplays int `json:"max_displays" yaml:"max_displays" mapstructure:"max_displays"`

	// RemoteURL is the base URL of the remote conversion service.
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty" mapstructure:"remote_url"`

	TimeoutBase  time.Duration `json:"timeout_base" yaml:"timeout_base" mapstructure:"timeout_base"`
	TimeoutPerMB time.Duration `json:"timeout_per_mb" yaml:"timeout_per_mb" mapstructure:"timeout_per_mb"`
	TimeoutMax   time.Duration `json:"timeout_max" yaml:"timeout_max" mapstructure:"timeout_max"`

	// OriginalPolicy is preserve (default) or remove.
	OriginalPolicy OriginalPolicy `json:"original_policy" yaml:"original_policy" mapstructure:"original_policy"`

	// Concurrency is the number of units processed in parallel by a batch
	// run (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// Defaults fills zero-valued fields. UseHeadless is left alone; callers
// start from DefaultConversionConfig when they want it on.
func (c *ConversionConfig) Defaults() {
	if c.DestRoot == "" {
		c.DestRoot = DefaultDestRoot
	}
	if c.Backend == "" {
		c.Backend = BackendLibreOffice
	}
	if c.SofficePath == "" {
		c.SofficePath = DefaultSofficePath
	}
	if c.XvfbPath == "" {
		c.XvfbPath = DefaultXvfbPath
	}
	if c.MaxDisplays <= 0 {
		c.MaxDisplays = DefaultMaxDisplays
	}
	if c.TimeoutBase <= 0 {
		c.TimeoutBase = DefaultTimeoutBase
	}
	if c.TimeoutPerMB < 0 {
		c.TimeoutPerMB = 0
	} else if c.TimeoutPerMB == 0 {
		c.TimeoutPerMB = DefaultTimeoutPerMB
	}
	if c.TimeoutMax <= 0 {
		c.TimeoutMax = DefaultTimeoutMax
	}
	if c.OriginalPolicy == "" {
		c.OriginalPolicy = OriginalsPreserve
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
}

// DefaultConversionConfig returns the configuration used when nothing is
// overridden: headless LibreOffice, originals preserved.
func DefaultConversionConfig() ConversionConfig {
	c := ConversionConfig{UseHeadless: true}
	c.Defaults()
	return c
}

// StoreConfig holds settings for the document store.
type StoreConfig struct {
	// Dir is the directory containing docprep.db.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Verbose switches to a development logger at debug level.
	Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
}

// Config groups all settings read from docprep.yaml.
type Config struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
