// Package config handles configuration loading, validation and hot reload
// for screenwatch.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/screenwatch/internal/classify"
	"github.com/ironsheep/screenwatch/internal/engine"
	"github.com/ironsheep/screenwatch/internal/format"
	"github.com/ironsheep/screenwatch/internal/imaging"
	"github.com/ironsheep/screenwatch/internal/prefilter"
	"github.com/ironsheep/screenwatch/internal/throttle"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SCREENWATCH_"

// Config is the complete screenwatch configuration.
type Config struct {
	Engine  EngineConfig   `toml:"engine" yaml:"engine" json:"engine"`
	Monitor MonitorConfig  `toml:"monitor" yaml:"monitor" json:"monitor"`
	Regions []RegionConfig `toml:"regions" yaml:"regions" json:"regions"`
	OCR     OCRConfig      `toml:"ocr" yaml:"ocr" json:"ocr"`
	Sinks   SinksConfig    `toml:"sinks" yaml:"sinks" json:"sinks"`
	HTTP    HTTPConfig     `toml:"http" yaml:"http" json:"http"`
	Log     LogConfig      `toml:"log" yaml:"log" json:"log"`
}

// EngineConfig holds the change-detection thresholds.
type EngineConfig struct {
	IntervalSeconds         int     `toml:"interval_seconds" yaml:"interval_seconds" json:"interval_seconds"`
	MinChangeChars          int     `toml:"min_change_chars" yaml:"min_change_chars" json:"min_change_chars"`
	SimilarityThreshold     float64 `toml:"similarity_threshold" yaml:"similarity_threshold" json:"similarity_threshold"`
	VisualChangeThreshold   float64 `toml:"visual_change_threshold" yaml:"visual_change_threshold" json:"visual_change_threshold"`
	ToneChangeThreshold     float64 `toml:"tone_change_threshold" yaml:"tone_change_threshold" json:"tone_change_threshold"`
	MajorChangeThreshold    float64 `toml:"major_change_threshold" yaml:"major_change_threshold" json:"major_change_threshold"`
	ConfidenceThreshold     float64 `toml:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
	AnalysisCooldownSeconds int     `toml:"analysis_cooldown_seconds" yaml:"analysis_cooldown_seconds" json:"analysis_cooldown_seconds"`
	AnalysisEnabled         bool    `toml:"analysis_enabled" yaml:"analysis_enabled" json:"analysis_enabled"`
	LexicalWeight           float64 `toml:"lexical_weight" yaml:"lexical_weight" json:"lexical_weight"`
	StructuralWeight        float64 `toml:"structural_weight" yaml:"structural_weight" json:"structural_weight"`
	LayoutGap               float64 `toml:"layout_gap" yaml:"layout_gap" json:"layout_gap"`
	HistorySize             int     `toml:"history_size" yaml:"history_size" json:"history_size"`
	OscillationLimit        int     `toml:"oscillation_limit" yaml:"oscillation_limit" json:"oscillation_limit"`
	MinLineChars            int     `toml:"min_line_chars" yaml:"min_line_chars" json:"min_line_chars"`
	MinAnalysisChars        int     `toml:"min_analysis_chars" yaml:"min_analysis_chars" json:"min_analysis_chars"`
	AnalysisMaxChars        int     `toml:"analysis_max_chars" yaml:"analysis_max_chars" json:"analysis_max_chars"`
}

// MonitorConfig controls the periodic worker.
type MonitorConfig struct {
	// QueueSize is the capacity of the event channel feeding the sinks.
	QueueSize int `toml:"queue_size" yaml:"queue_size" json:"queue_size"`
	// ErrorLimit is how many consecutive failed cycles mark a region degraded.
	ErrorLimit int `toml:"error_limit" yaml:"error_limit" json:"error_limit"`
}

// RegionConfig is one watched screen region.
type RegionConfig struct {
	ID string `toml:"id" yaml:"id" json:"id"`
	// Source is an image file kept up to date by an external screenshotter.
	Source string         `toml:"source" yaml:"source" json:"source"`
	Crop   imaging.Region `toml:"crop" yaml:"crop" json:"crop"`
}

// OCRConfig configures Tesseract.
type OCRConfig struct {
	Language string `toml:"language" yaml:"language" json:"language"`
}

// SinksConfig selects the notification, analysis and display sinks.
type SinksConfig struct {
	Log       bool           `toml:"log" yaml:"log" json:"log"`
	Stdout    bool           `toml:"stdout" yaml:"stdout" json:"stdout"`
	WebSocket bool           `toml:"websocket" yaml:"websocket" json:"websocket"`
	Webhook   WebhookConfig  `toml:"webhook" yaml:"webhook" json:"webhook"`
	Telegram  TelegramConfig `toml:"telegram" yaml:"telegram" json:"telegram"`
	Journal   JournalConfig  `toml:"journal" yaml:"journal" json:"journal"`
}

// WebhookConfig configures the analysis-trigger webhook. An empty URL
// disables it.
type WebhookConfig struct {
	URL            string `toml:"url" yaml:"url" json:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
	Retries        int    `toml:"retries" yaml:"retries" json:"retries"`
}

// TelegramConfig configures the Telegram notifier. An empty token disables
// it.
type TelegramConfig struct {
	Token  string `toml:"token" yaml:"token" json:"token"`
	ChatID int64  `toml:"chat_id" yaml:"chat_id" json:"chat_id"`
}

// JournalConfig configures the sqlite event journal. An empty path disables
// it.
type JournalConfig struct {
	Path string `toml:"path" yaml:"path" json:"path"`
}

// HTTPConfig configures the status API. An empty address disables it.
type HTTPConfig struct {
	Listen string `toml:"listen" yaml:"listen" json:"listen"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: defaultEngine(),
		Monitor: MonitorConfig{
			QueueSize:  64,
			ErrorLimit: 5,
		},
		OCR: OCRConfig{Language: "eng"},
		Sinks: SinksConfig{
			Log: true,
			Webhook: WebhookConfig{
				TimeoutSeconds: 10,
				Retries:        3,
			},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func defaultEngine() EngineConfig {
	return EngineConfig{
		IntervalSeconds:         5,
		MinChangeChars:          50,
		SimilarityThreshold:     0.85,
		VisualChangeThreshold:   prefilter.DefaultThreshold,
		ToneChangeThreshold:     0,
		MajorChangeThreshold:    0.4,
		ConfidenceThreshold:     0.5,
		AnalysisCooldownSeconds: 30,
		AnalysisEnabled:         true,
		LexicalWeight:           0.5,
		StructuralWeight:        0.5,
		LayoutGap:               0.25,
		HistorySize:             16,
		OscillationLimit:        2,
		MinLineChars:            format.DefaultMinLineChars,
		MinAnalysisChars:        10,
		AnalysisMaxChars:        800,
	}
}

// Interval returns the polling interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// Stages converts the engine section into per-stage parameters.
func (c *Config) Stages() engine.Config {
	e := c.Engine
	cls := classify.DefaultConfig()
	cls.LexicalWeight = e.LexicalWeight
	cls.StructuralWeight = e.StructuralWeight
	cls.MajorChangeThreshold = e.MajorChangeThreshold
	cls.SimilarityThreshold = e.SimilarityThreshold
	cls.MinChangeChars = e.MinChangeChars
	cls.LayoutGap = e.LayoutGap

	return engine.Config{
		Prefilter: prefilter.Filter{
			Threshold:     e.VisualChangeThreshold,
			ToneThreshold: e.ToneChangeThreshold,
		},
		Classify: cls,
		Throttle: throttle.Config{
			Cooldown:            time.Duration(e.AnalysisCooldownSeconds) * time.Second,
			ConfidenceThreshold: e.ConfidenceThreshold,
			Enabled:             e.AnalysisEnabled,
			OscillationLimit:    e.OscillationLimit,
			HistorySize:         e.HistorySize,
		},
		Format: format.Formatter{MinLineChars: e.MinLineChars},
	}
}

// Region returns the region with id.
func (c *Config) Region(id string) (RegionConfig, bool) {
	for _, r := range c.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return RegionConfig{}, false
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Regions = append([]RegionConfig(nil), c.Regions...)
	return &clone
}

// ApplyEnvOverrides applies SCREENWATCH_* environment variables. Values
// that fail to parse are skipped and reported as warnings.
func (c *Config) ApplyEnvOverrides() []string {
	var warnings []string
	intVar := func(name string, dst *int) {
		if v, ok := lookupEnv(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				warnings = append(warnings, "env "+EnvPrefix+name+": not an integer: "+v)
				return
			}
			*dst = n
		}
	}
	floatVar := func(name string, dst *float64) {
		if v, ok := lookupEnv(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				warnings = append(warnings, "env "+EnvPrefix+name+": not a number: "+v)
				return
			}
			*dst = f
		}
	}
	boolVar := func(name string, dst *bool) {
		if v, ok := lookupEnv(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				warnings = append(warnings, "env "+EnvPrefix+name+": not a boolean: "+v)
				return
			}
			*dst = b
		}
	}
	stringVar := func(name string, dst *string) {
		if v, ok := lookupEnv(name); ok {
			*dst = v
		}
	}

	e := &c.Engine
	intVar("INTERVAL_SECONDS", &e.IntervalSeconds)
	intVar("MIN_CHANGE_CHARS", &e.MinChangeChars)
	floatVar("SIMILARITY_THRESHOLD", &e.SimilarityThreshold)
	floatVar("VISUAL_CHANGE_THRESHOLD", &e.VisualChangeThreshold)
	floatVar("TONE_CHANGE_THRESHOLD", &e.ToneChangeThreshold)
	floatVar("MAJOR_CHANGE_THRESHOLD", &e.MajorChangeThreshold)
	floatVar("CONFIDENCE_THRESHOLD", &e.ConfidenceThreshold)
	intVar("ANALYSIS_COOLDOWN_SECONDS", &e.AnalysisCooldownSeconds)
	boolVar("ANALYSIS_ENABLED", &e.AnalysisEnabled)

	stringVar("OCR_LANGUAGE", &c.OCR.Language)
	stringVar("WEBHOOK_URL", &c.Sinks.Webhook.URL)
	stringVar("TELEGRAM_TOKEN", &c.Sinks.Telegram.Token)
	if v, ok := lookupEnv("TELEGRAM_CHAT_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			warnings = append(warnings, "env "+EnvPrefix+"TELEGRAM_CHAT_ID: not an integer: "+v)
		} else {
			c.Sinks.Telegram.ChatID = id
		}
	}
	stringVar("JOURNAL_PATH", &c.Sinks.Journal.Path)
	stringVar("HTTP_LISTEN", &c.HTTP.Listen)
	stringVar("LOG_LEVEL", &c.Log.Level)
	stringVar("LOG_FORMAT", &c.Log.Format)

	return warnings
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
