package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/ironsheep/screenwatch/internal/imaging"
)

// Clamp pulls every field into its valid range and returns one warning per
// adjusted field. NaN values are replaced by their defaults. Clamp never
// fails: a running monitor keeps going with the nearest valid setting.
func (c *Config) Clamp() []string {
	var w warnings
	def := defaultEngine()
	e := &c.Engine

	w.clampInt("engine.interval_seconds", &e.IntervalSeconds, 1, 3600)
	w.clampInt("engine.min_change_chars", &e.MinChangeChars, 0, 100000)
	w.clampFloat("engine.similarity_threshold", &e.SimilarityThreshold, 0, 1, def.SimilarityThreshold)
	w.clampFloat("engine.visual_change_threshold", &e.VisualChangeThreshold, 0, 1, def.VisualChangeThreshold)
	w.clampFloat("engine.tone_change_threshold", &e.ToneChangeThreshold, 0, 100, def.ToneChangeThreshold)
	w.clampFloat("engine.major_change_threshold", &e.MajorChangeThreshold, 0.01, 1, def.MajorChangeThreshold)
	w.clampFloat("engine.confidence_threshold", &e.ConfidenceThreshold, 0, 1, def.ConfidenceThreshold)
	w.clampInt("engine.analysis_cooldown_seconds", &e.AnalysisCooldownSeconds, 0, 86400)
	w.clampFloat("engine.lexical_weight", &e.LexicalWeight, 0, 1, def.LexicalWeight)
	w.clampFloat("engine.structural_weight", &e.StructuralWeight, 0, 1, def.StructuralWeight)
	if e.LexicalWeight == 0 && e.StructuralWeight == 0 {
		w.add("engine.lexical_weight", "both weights are zero, using defaults")
		e.LexicalWeight, e.StructuralWeight = def.LexicalWeight, def.StructuralWeight
	}
	w.clampFloat("engine.layout_gap", &e.LayoutGap, 0, 1, def.LayoutGap)
	w.clampInt("engine.history_size", &e.HistorySize, 2, 1024)
	w.clampInt("engine.oscillation_limit", &e.OscillationLimit, 1, e.HistorySize)
	w.clampInt("engine.min_line_chars", &e.MinLineChars, 0, 80)
	w.clampInt("engine.min_analysis_chars", &e.MinAnalysisChars, 0, 100000)
	w.clampInt("engine.analysis_max_chars", &e.AnalysisMaxChars, 50, 100000)

	w.clampInt("monitor.queue_size", &c.Monitor.QueueSize, 1, 10000)
	w.clampInt("monitor.error_limit", &c.Monitor.ErrorLimit, 1, 1000)

	w.clampInt("sinks.webhook.timeout_seconds", &c.Sinks.Webhook.TimeoutSeconds, 1, 300)
	w.clampInt("sinks.webhook.retries", &c.Sinks.Webhook.Retries, 0, 10)
	if u := c.Sinks.Webhook.URL; u != "" && !isValidURL(u) {
		w.add("sinks.webhook.url", "not an http(s) URL, webhook disabled")
		c.Sinks.Webhook.URL = ""
	}
	if c.Sinks.Telegram.Token != "" && c.Sinks.Telegram.ChatID == 0 {
		w.add("sinks.telegram.chat_id", "missing, telegram disabled")
		c.Sinks.Telegram.Token = ""
	}

	if strings.TrimSpace(c.OCR.Language) == "" {
		w.add("ocr.language", "empty, using eng")
		c.OCR.Language = "eng"
	}

	c.clampRegions(&w)
	return w
}

func (c *Config) clampRegions(w *warnings) {
	seen := make(map[string]bool, len(c.Regions))
	kept := c.Regions[:0]
	for i, r := range c.Regions {
		if r.ID == "" {
			r.ID = fmt.Sprintf("region-%d", i+1)
			w.add(fmt.Sprintf("regions[%d].id", i), "missing, using "+r.ID)
		}
		if seen[r.ID] {
			w.add(fmt.Sprintf("regions[%d].id", i), "duplicate "+r.ID+", region dropped")
			continue
		}
		if r.Source == "" {
			w.add(fmt.Sprintf("regions[%d].source", i), "missing, region dropped")
			continue
		}
		if !r.Crop.IsZero() && (r.Crop.X1 < 0 || r.Crop.Y1 < 0 || r.Crop.X1 >= r.Crop.X2 || r.Crop.Y1 >= r.Crop.Y2) {
			w.add(fmt.Sprintf("regions[%d].crop", i), "invalid rectangle, using whole frame")
			r.Crop = imaging.Region{}
		}
		seen[r.ID] = true
		kept = append(kept, r)
	}
	c.Regions = kept
}

// warnings collects clamp messages.
type warnings []string

func (w *warnings) add(field, msg string) {
	*w = append(*w, fmt.Sprintf("config: %s: %s", field, msg))
}

func (w *warnings) clampInt(field string, v *int, lo, hi int) {
	switch {
	case *v < lo:
		w.add(field, fmt.Sprintf("%d below minimum, using %d", *v, lo))
		*v = lo
	case *v > hi:
		w.add(field, fmt.Sprintf("%d above maximum, using %d", *v, hi))
		*v = hi
	}
}

func (w *warnings) clampFloat(field string, v *float64, lo, hi, def float64) {
	switch {
	case math.IsNaN(*v):
		w.add(field, fmt.Sprintf("NaN, using default %g", def))
		*v = def
	case *v < lo:
		w.add(field, fmt.Sprintf("%g below minimum, using %g", *v, lo))
		*v = lo
	case *v > hi:
		w.add(field, fmt.Sprintf("%g above maximum, using %g", *v, hi))
		*v = hi
	}
}

func isValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
