package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/screenwatch/internal/engine"
	"github.com/ironsheep/screenwatch/internal/imaging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5*time.Second, cfg.Interval())
	assert.Equal(t, 50, cfg.Engine.MinChangeChars)
	assert.Equal(t, 0.85, cfg.Engine.SimilarityThreshold)
	assert.True(t, cfg.Engine.AnalysisEnabled)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Empty(t, cfg.Clamp(), "defaults must already be valid")
}

func TestDefaultConfig_StagesMatchEngineDefaults(t *testing.T) {
	assert.Equal(t, engine.DefaultConfig(), DefaultConfig().Stages())
}

func TestLoad_Nonexistent(t *testing.T) {
	cfg, warnings, err := Load("/nonexistent/path/screenwatch.toml")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.IntervalSeconds)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "screenwatch.toml", `
[engine]
interval_seconds = 2
similarity_threshold = 0.9
analysis_enabled = false

[[regions]]
id = "chat"
source = "/tmp/screen.png"
crop = { x1 = 0, y1 = 0, x2 = 200, y2 = 100 }

[sinks]
stdout = true

[sinks.webhook]
url = "https://example.com/hook"
`)

	cfg, warnings, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 2, cfg.Engine.IntervalSeconds)
	assert.Equal(t, 0.9, cfg.Engine.SimilarityThreshold)
	assert.False(t, cfg.Engine.AnalysisEnabled)
	assert.Equal(t, 50, cfg.Engine.MinChangeChars, "unset keys keep defaults")
	assert.True(t, cfg.Sinks.Stdout)
	assert.True(t, cfg.Sinks.Log)
	assert.Equal(t, "https://example.com/hook", cfg.Sinks.Webhook.URL)
	assert.Equal(t, 3, cfg.Sinks.Webhook.Retries)

	region, ok := cfg.Region("chat")
	require.True(t, ok)
	assert.Equal(t, "/tmp/screen.png", region.Source)
	assert.Equal(t, imaging.Region{X1: 0, Y1: 0, X2: 200, Y2: 100}, region.Crop)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "screenwatch.yaml", `
engine:
  min_change_chars: 20
  tone_change_threshold: 12.5
regions:
  - id: term
    source: /tmp/term.png
http:
  listen: 127.0.0.1:9000
`)

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Engine.MinChangeChars)
	assert.Equal(t, 12.5, cfg.Engine.ToneChangeThreshold)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Listen)
	require.Len(t, cfg.Regions, 1)
	assert.True(t, cfg.Regions[0].Crop.IsZero())
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "screenwatch.json", `{
  "engine": {"major_change_threshold": 0.3, "history_size": 32},
  "sinks": {"journal": {"path": "/tmp/events.db"}}
}`)

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Engine.MajorChangeThreshold)
	assert.Equal(t, 32, cfg.Engine.HistorySize)
	assert.Equal(t, "/tmp/events.db", cfg.Sinks.Journal.Path)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeFile(t, "screenwatch.toml", "this is = = not toml")
	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_NaNFallsBackToDefault(t *testing.T) {
	path := writeFile(t, "screenwatch.toml", "[engine]\nmajor_change_threshold = nan\n")

	cfg, warnings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Engine.MajorChangeThreshold)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "engine.major_change_threshold")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SCREENWATCH_INTERVAL_SECONDS", "9")
	t.Setenv("SCREENWATCH_ANALYSIS_ENABLED", "false")
	t.Setenv("SCREENWATCH_SIMILARITY_THRESHOLD", "0.7")
	t.Setenv("SCREENWATCH_TELEGRAM_CHAT_ID", "12345")
	t.Setenv("SCREENWATCH_LOG_LEVEL", "debug")
	t.Setenv("SCREENWATCH_MIN_CHANGE_CHARS", "lots")

	cfg := DefaultConfig()
	warnings := cfg.ApplyEnvOverrides()

	assert.Equal(t, 9, cfg.Engine.IntervalSeconds)
	assert.False(t, cfg.Engine.AnalysisEnabled)
	assert.Equal(t, 0.7, cfg.Engine.SimilarityThreshold)
	assert.Equal(t, int64(12345), cfg.Sinks.Telegram.ChatID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Engine.MinChangeChars)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "SCREENWATCH_MIN_CHANGE_CHARS")
}

func TestClamp_Bounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.IntervalSeconds = 0
	cfg.Engine.SimilarityThreshold = 1.5
	cfg.Engine.MajorChangeThreshold = 0
	cfg.Engine.ConfidenceThreshold = math.NaN()
	cfg.Engine.HistorySize = 4
	cfg.Engine.OscillationLimit = 10
	cfg.Engine.AnalysisMaxChars = 1
	cfg.Monitor.QueueSize = -3

	warnings := cfg.Clamp()

	assert.Equal(t, 1, cfg.Engine.IntervalSeconds)
	assert.Equal(t, 1.0, cfg.Engine.SimilarityThreshold)
	assert.Equal(t, 0.01, cfg.Engine.MajorChangeThreshold)
	assert.Equal(t, 0.5, cfg.Engine.ConfidenceThreshold)
	assert.Equal(t, 4, cfg.Engine.OscillationLimit, "oscillation limit bounded by history size")
	assert.Equal(t, 50, cfg.Engine.AnalysisMaxChars)
	assert.Equal(t, 1, cfg.Monitor.QueueSize)
	assert.Len(t, warnings, 7)
}

func TestClamp_ZeroWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.LexicalWeight = 0
	cfg.Engine.StructuralWeight = 0

	warnings := cfg.Clamp()
	assert.Equal(t, 0.5, cfg.Engine.LexicalWeight)
	assert.Equal(t, 0.5, cfg.Engine.StructuralWeight)
	assert.Len(t, warnings, 1)
}

func TestClamp_Sinks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.Webhook.URL = "ftp://example.com"
	cfg.Sinks.Telegram.Token = "123:abc"

	warnings := cfg.Clamp()
	assert.Empty(t, cfg.Sinks.Webhook.URL)
	assert.Empty(t, cfg.Sinks.Telegram.Token)
	assert.Len(t, warnings, 2)
}

func TestClamp_Regions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Regions = []RegionConfig{
		{ID: "a", Source: "/tmp/a.png"},
		{ID: "a", Source: "/tmp/dup.png"},
		{Source: "/tmp/anon.png"},
		{ID: "nosource"},
		{ID: "badcrop", Source: "/tmp/b.png", Crop: imaging.Region{X1: 50, Y1: 0, X2: 10, Y2: 10}},
	}

	warnings := cfg.Clamp()

	ids := make([]string, 0, len(cfg.Regions))
	for _, r := range cfg.Regions {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "region-3", "badcrop"}, ids)
	assert.True(t, cfg.Regions[2].Crop.IsZero())
	assert.Len(t, warnings, 4)
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Regions = []RegionConfig{{ID: "a", Source: "/tmp/a.png"}}

	clone := cfg.Clone()
	clone.Regions[0].ID = "changed"
	clone.Engine.IntervalSeconds = 99

	assert.Equal(t, "a", cfg.Regions[0].ID)
	assert.Equal(t, 5, cfg.Engine.IntervalSeconds)
}

func TestLoader_HotReload(t *testing.T) {
	path := writeFile(t, "screenwatch.toml", "[engine]\ninterval_seconds = 5\n")

	l := NewLoader(path, nil)
	defer l.Close()

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.IntervalSeconds)

	changed := make(chan *Config, 4)
	l.OnChange(func(c *Config) { changed <- c })
	require.NoError(t, l.Watch())

	require.NoError(t, os.WriteFile(path, []byte("[engine]\ninterval_seconds = 7\n"), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, 7, c.Engine.IntervalSeconds)
		assert.Equal(t, 7, l.Config().Engine.IntervalSeconds)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestLoader_BadReloadKeepsPrevious(t *testing.T) {
	path := writeFile(t, "screenwatch.toml", "[engine]\ninterval_seconds = 5\n")

	l := NewLoader(path, nil)
	defer l.Close()
	_, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, l.Watch())

	require.NoError(t, os.WriteFile(path, []byte("this is = = not toml"), 0o644))

	select {
	case err := <-l.Errors():
		assert.True(t, strings.Contains(err.Error(), "reload config"), err.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
	assert.Equal(t, 5, l.Config().Engine.IntervalSeconds)
}
