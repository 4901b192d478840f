package scheduler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/db"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/media"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduler_RunsJobAndTracksStats(t *testing.T) {
	s := newScheduler(t)

	var calls atomic.Int32
	require.NoError(t, s.AddSingletonJob("ok", "ok job", 20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, s.AddSingletonJob("bad", "failing job", 20*time.Millisecond, func(ctx context.Context) error {
		return errors.New("boom")
	}))

	s.Start()

	require.Eventually(t, func() bool {
		ok, _ := s.Job("ok")
		bad, _ := s.Job("bad")
		return ok.RunCount > 0 && bad.ErrorCount > 0
	}, 2*time.Second, 10*time.Millisecond)

	ok, found := s.Job("ok")
	require.True(t, found)
	assert.Empty(t, ok.LastError)
	assert.False(t, ok.LastRun.IsZero())
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	bad, _ := s.Job("bad")
	assert.Equal(t, "boom", bad.LastError)

	_, found = s.Job("missing")
	assert.False(t, found)
}

func TestScheduler_RejectsBadInterval(t *testing.T) {
	s := newScheduler(t)
	assert.Error(t, s.AddSingletonJob("zero", "zero", 0, func(context.Context) error { return nil }))
}

func TestPhotoSweepJob(t *testing.T) {
	gdb, err := db.Connect("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	store := media.NewPhotoStore(t.TempDir(), "")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	orphan, err := store.Save(uuid.New(), bytes.NewReader(buf.Bytes()), models.PhotoTransform{})
	require.NoError(t, err)

	job := PhotoSweep(store, gdb, -time.Minute)
	require.NoError(t, job(context.Background()))

	n, err := store.SweepOrphans(context.Background(), gdb, -time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n, "job already removed %s", orphan)
}
