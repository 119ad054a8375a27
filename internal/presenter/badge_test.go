package presenter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/domain"
)

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []domain.StatusSnapshot
}

func (r *snapshotRecorder) sink(snap domain.StatusSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *snapshotRecorder) badges() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.Badge
	}
	return out
}

func newBadge(rec *snapshotRecorder, ttl time.Duration) *Badge {
	cfg := DefaultConfig()
	cfg.FlashTTL = ttl
	var sink Sink
	if rec != nil {
		sink = rec.sink
	}
	return New(cfg, sink, zap.NewNop())
}

func TestBadge_CountdownRendersRemainingSeconds(t *testing.T) {
	b := newBadge(nil, time.Second)

	b.ShowCountdown(domain.CountdownState{Active: true, RemainingSeconds: 9})
	assert.Equal(t, "9", b.Text())

	b.ShowCountdown(domain.CountdownState{Active: true, RemainingSeconds: 8})
	assert.Equal(t, "8", b.Text())

	b.ShowIdle()
	assert.Equal(t, "", b.Text())
}

func TestBadge_DisabledFlashAutoClears(t *testing.T) {
	b := newBadge(nil, 20*time.Millisecond)

	b.ShowDisabled()
	assert.Equal(t, "OFF", b.Text())

	require.Eventually(t, func() bool { return b.Text() == "" },
		time.Second, time.Millisecond)
}

func TestBadge_ClearedFlashAutoClears(t *testing.T) {
	b := newBadge(nil, 20*time.Millisecond)

	b.ShowCleared()
	assert.Equal(t, "✓", b.Text())

	require.Eventually(t, func() bool { return b.Text() == "" },
		time.Second, time.Millisecond)
}

// A new state arriving during a flash cancels the pending auto-clear so
// the stale timer cannot blank the fresh indicator.
func TestBadge_NewStateCancelsPendingFlash(t *testing.T) {
	b := newBadge(nil, 20*time.Millisecond)

	b.ShowCleared()
	b.ShowCountdown(domain.CountdownState{Active: true, RemainingSeconds: 5})

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "5", b.Text(), "stale flash timer must not blank a live countdown")
}

func TestBadge_PublishesSnapshotsToSink(t *testing.T) {
	rec := &snapshotRecorder{}
	b := newBadge(rec, time.Second)

	deadline := time.Now().Add(3 * time.Second)
	b.ShowCountdown(domain.CountdownState{Active: true, RemainingSeconds: 3, Deadline: deadline})
	b.ShowIdle()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.snaps, 2)
	assert.Equal(t, domain.PhaseCountingDown, rec.snaps[0].Phase)
	assert.Equal(t, 3, rec.snaps[0].RemainingSeconds)
	assert.NotZero(t, rec.snaps[0].DaemonPID)
	assert.Equal(t, domain.PhaseIdle, rec.snaps[1].Phase)
}

func TestBadge_FlashExpiryPublishesBlankSnapshot(t *testing.T) {
	rec := &snapshotRecorder{}
	b := newBadge(rec, 20*time.Millisecond)

	b.ShowDisabled()
	require.Eventually(t, func() bool {
		badges := rec.badges()
		return len(badges) == 2 && badges[1] == ""
	}, time.Second, time.Millisecond)

	// Phase stays disabled, only the text auto-cleared.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, domain.PhaseDisabled, rec.snaps[1].Phase)
}
