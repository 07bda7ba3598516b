package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/screenwatch/internal/change"
	"github.com/ironsheep/screenwatch/internal/imaging"
	"github.com/ironsheep/screenwatch/internal/throttle"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func analyze(t *testing.T, e *Engine, region, text string, at time.Time) Outcome {
	t.Helper()
	out, err := e.Analyze(context.Background(), region, text, at)
	require.NoError(t, err)
	return out
}

func TestAnalyze_FirstCycleIsFullChange(t *testing.T) {
	e := New(DefaultConfig())

	out := analyze(t, e, "main", "Quarterly revenue report draft", t0)
	require.NotNil(t, out.Event)
	assert.Equal(t, change.MajorContentChange, out.Event.Type)
	assert.InDelta(t, 1.0, out.Event.Confidence, 1e-9)
	assert.True(t, out.Accepted())
	assert.Equal(t, "Quarterly revenue report draft", out.Formatted)
}

func TestAnalyze_LoadingDotsScenario(t *testing.T) {
	e := New(DefaultConfig())
	require.True(t, analyze(t, e, "main", "Page 1 of 10 — Loading...", t0).Accepted())

	out := analyze(t, e, "main", "Page 1 of 10 — Loading....", t0.Add(time.Minute))
	assert.Equal(t, 1.0, out.Scores.Lexical)
	assert.Equal(t, change.MinorChange, out.Result.Type)
	assert.False(t, out.Accepted())
	assert.Equal(t, throttle.ReasonMinorType, out.Decision.Reason)
	assert.Empty(t, out.Formatted)
}

func TestAnalyze_NotFoundScenario(t *testing.T) {
	e := New(DefaultConfig())
	require.True(t, analyze(t, e, "main", "Inbox (3 unread)", t0).Accepted())

	out := analyze(t, e, "main", "404 — Page Not Found", t0.Add(31*time.Second))
	assert.Equal(t, "404 — Page Not Found", out.Normalized)
	assert.Equal(t, change.SemanticChange, out.Result.Type)
	assert.Equal(t, "error", out.Result.Cue)
	assert.GreaterOrEqual(t, out.Result.Confidence, 0.7)
	assert.True(t, out.Accepted())

	snap, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, "404 — Page Not Found", snap.Baseline)
	assert.Equal(t, change.SemanticChange, snap.LastType)
	assert.Equal(t, t0.Add(31*time.Second), snap.LastAccepted)
	require.NotNil(t, snap.LastEvent)
	assert.Equal(t, out.Event.ID, snap.LastEvent.ID)
}

func TestAnalyze_BaselineMovesOnlyOnAccept(t *testing.T) {
	e := New(DefaultConfig())
	require.True(t, analyze(t, e, "main", "Quarterly revenue report draft", t0).Accepted())

	out := analyze(t, e, "main", "Completely different wording appears here now", t0.Add(10*time.Second))
	assert.Equal(t, change.MajorContentChange, out.Result.Type)
	assert.False(t, out.Accepted())
	assert.Equal(t, throttle.ReasonCooldown, out.Decision.Reason)

	snap, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly revenue report draft", snap.Baseline)
	assert.Len(t, snap.History, 2)
}

func TestAnalyze_CooldownReevaluationIsNotRevisit(t *testing.T) {
	e := New(DefaultConfig())
	require.True(t, analyze(t, e, "main", "Inbox (3 unread)", t0).Accepted())

	held := analyze(t, e, "main", "404 — Page Not Found", t0.Add(5*time.Second))
	require.Equal(t, throttle.ReasonCooldown, held.Decision.Reason)
	analyze(t, e, "main", "404 — Page Not Found", t0.Add(10*time.Second))

	out := analyze(t, e, "main", "404 — Page Not Found", t0.Add(31*time.Second))
	assert.True(t, out.Accepted())
	assert.False(t, out.Result.Revisit)
	assert.InDelta(t, held.Result.Confidence, out.Result.Confidence, 1e-9)
}

func TestAnalyze_NoUsableText(t *testing.T) {
	e := New(DefaultConfig())
	require.True(t, analyze(t, e, "main", "Quarterly revenue report draft", t0).Accepted())
	before, err := e.Snapshot("main")
	require.NoError(t, err)

	inputs := []string{"", "   ", "OCR_ERROR: engine crashed", "No text detected in image", "12:34 ..."}
	for i, raw := range inputs {
		out := analyze(t, e, "main", raw, t0.Add(time.Duration(i+1)*time.Second))
		assert.Equal(t, throttle.ReasonNoText, out.Decision.Reason, "input %q", raw)
		assert.Nil(t, out.Event, "input %q", raw)
	}

	after, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, before.Baseline, after.Baseline)
	assert.Equal(t, before.CooldownUntil, after.CooldownUntil)
	require.Len(t, after.History, 1+len(inputs))
	for _, rec := range after.History[1:] {
		assert.True(t, rec.Null)
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	e := New(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Analyze(ctx, "main", "Quarterly revenue report draft", t0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.Regions(), "abandoned cycle must not create state")
}

func TestAnalyze_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Throttle.Enabled = false
	e := New(cfg)

	out := analyze(t, e, "main", "404 — Page Not Found", t0)
	assert.False(t, out.Accepted())
	assert.Equal(t, throttle.ReasonDisabled, out.Decision.Reason)

	snap, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.Baseline)
}

func TestSetConfig_AppliesToExistingRegions(t *testing.T) {
	e := New(DefaultConfig())
	require.True(t, analyze(t, e, "main", "Quarterly revenue report draft", t0).Accepted())

	cfg := e.Config()
	cfg.Throttle.Cooldown = 5 * time.Second
	e.SetConfig(cfg)

	// The running cooldown (30s) is kept; new acceptances use the new value.
	out := analyze(t, e, "main", "Completely different wording appears here now", t0.Add(30*time.Second))
	require.True(t, out.Accepted())

	snap, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(35*time.Second), snap.CooldownUntil)
}

func TestPrefilter(t *testing.T) {
	e := New(DefaultConfig())
	fp := imaging.Fingerprint{Bits: [2]uint64{0xabcdef, 0x123456}}

	assert.True(t, e.Prefilter("main", fp).Passed(), "first frame passes")
	assert.False(t, e.Prefilter("main", fp).Passed(), "identical frame rejects")

	moved := imaging.Fingerprint{Bits: [2]uint64{^fp.Bits[0], fp.Bits[1]}}
	assert.True(t, e.Prefilter("main", moved).Passed())

	snap, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, moved.String(), snap.Fingerprint)
}

func TestRetryFrame(t *testing.T) {
	e := New(DefaultConfig())
	fp := imaging.Fingerprint{Bits: [2]uint64{0xabcdef, 0x123456}}

	require.True(t, e.Prefilter("main", fp).Passed())
	assert.True(t, e.RetryFrame("main"))
	assert.True(t, e.Prefilter("main", fp).Passed(), "restored frame passes again")

	analyze(t, e, "main", "Quarterly revenue report draft", t0)
	assert.False(t, e.RetryFrame("main"), "analyzed frame is not retried")
	assert.False(t, e.Prefilter("main", fp).Passed())

	moved := imaging.Fingerprint{Bits: [2]uint64{^fp.Bits[0], fp.Bits[1]}}
	require.True(t, e.Prefilter("main", moved).Passed())
	assert.True(t, e.RetryFrame("main"))
	assert.False(t, e.RetryFrame("main"), "only the last pass is undone")

	snap, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, fp.String(), snap.Fingerprint)
}

func TestPrefilterFrame_DegradesOnBadFrame(t *testing.T) {
	e := New(DefaultConfig())
	fp := imaging.Fingerprint{Bits: [2]uint64{1, 2}}
	e.Prefilter("main", fp)

	d := e.PrefilterFrame("main", nil)
	assert.True(t, d.Passed())
	assert.True(t, d.Degraded)

	snap, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, fp.String(), snap.Fingerprint, "stored fingerprint untouched")
}

func TestRegionsAreIndependent(t *testing.T) {
	e := New(DefaultConfig())
	require.True(t, analyze(t, e, "left", "Quarterly revenue report draft", t0).Accepted())

	out := analyze(t, e, "right", "Quarterly revenue report draft", t0.Add(time.Second))
	assert.True(t, out.Accepted(), "cooldown in one region must not affect another")
	assert.Equal(t, []string{"left", "right"}, e.Regions())
}

func TestErrorCounting(t *testing.T) {
	e := New(DefaultConfig())
	assert.Equal(t, 1, e.RecordError("main"))
	assert.Equal(t, 2, e.RecordError("main"))

	snap, err := e.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ConsecutiveErrors)

	assert.Equal(t, 2, e.ResetErrors("main"))
	assert.Equal(t, 0, e.ResetErrors("main"))
}

func TestSnapshot_UnknownRegion(t *testing.T) {
	e := New(DefaultConfig())
	_, err := e.Snapshot("nope")
	assert.ErrorIs(t, err, ErrUnknownRegion)
	assert.Empty(t, e.Snapshots())
}

func TestAnalyze_ConcurrentRegions(t *testing.T) {
	e := New(DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		region := fmt.Sprintf("region-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = e.Analyze(context.Background(), region, fmt.Sprintf("Screen number %d of the test", j), t0.Add(time.Duration(j)*time.Minute))
				_ = e.Snapshots()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, e.Snapshots(), 8)
}
