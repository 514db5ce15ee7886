package scanner

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBase(opts ...BaseOption[int]) *Base[int] {
	logger, _ := test.NewNullLogger()
	return NewBase[int]("test", logger, opts...)
}

func TestStartRunResetsState(t *testing.T) {
	base := newTestBase()

	gen := base.StartRun()
	base.SetServers(gen, []string{"a", "b"})
	base.SetCurrentServer(gen, "a")
	base.SetItems(gen, []int{1, 2, 3})

	status := base.Status()
	assert.True(t, status.Running)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, "a", status.CurrentServer)
	assert.Equal(t, []string{"a", "b"}, status.Servers)

	second := base.StartRun()
	assert.Greater(t, second, gen)

	status = base.Status()
	assert.True(t, status.Running)
	assert.Equal(t, 0, status.Total)
	assert.Empty(t, status.CurrentServer)
	assert.Empty(t, status.Servers)
}

func TestEndRunMarksIdle(t *testing.T) {
	base := newTestBase()

	gen := base.StartRun()
	base.EndRun(gen)

	assert.False(t, base.Status().Running)
}

func TestStaleEndRunIsNoOp(t *testing.T) {
	base := newTestBase()

	stale := base.StartRun()
	base.StartRun()

	// The old run finishing late must not mark the new run idle
	base.EndRun(stale)

	assert.True(t, base.Status().Running)
}

func TestLoopProcessesEveryItem(t *testing.T) {
	base := newTestBase(WithBundleSize[int](2), WithUpdateRate[int](0))

	gen := base.StartRun()
	base.SetItems(gen, []int{1, 2, 3, 4, 5})

	var mu sync.Mutex
	seen := make(map[int]bool)
	err := base.Loop(context.Background(), gen, func(_ context.Context, item int) {
		mu.Lock()
		seen[item] = true
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Len(t, seen, 5)
	assert.Equal(t, 5, base.Status().Progress)
}

func TestLoopEmptyItems(t *testing.T) {
	base := newTestBase(WithUpdateRate[int](0))

	gen := base.StartRun()
	base.SetItems(gen, nil)

	called := false
	err := base.Loop(context.Background(), gen, func(_ context.Context, _ int) {
		called = true
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestLoopStopsWhenSuperseded(t *testing.T) {
	base := newTestBase(WithBundleSize[int](1), WithUpdateRate[int](0))

	gen := base.StartRun()
	base.SetItems(gen, []int{1, 2, 3, 4})

	processed := 0
	err := base.Loop(context.Background(), gen, func(_ context.Context, item int) {
		processed++
		if item == 2 {
			// A new run starts mid-flight
			base.StartRun()
		}
	})

	require.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, 2, processed)

	// The stale run's finished items must not bleed into the new session
	assert.Equal(t, 0, base.Status().Progress)
}

func TestStaleSettersDoNotTouchNewSession(t *testing.T) {
	base := newTestBase()

	stale := base.StartRun()
	gen := base.StartRun()
	base.SetServers(gen, []string{"new"})
	base.SetCurrentServer(gen, "new")
	base.SetItems(gen, []int{1, 2})

	// A superseded run still between servers must not clobber any of this
	base.SetServers(stale, []string{"old"})
	base.SetCurrentServer(stale, "old")
	base.SetItems(stale, []int{1, 2, 3, 4, 5})

	status := base.Status()
	assert.Equal(t, []string{"new"}, status.Servers)
	assert.Equal(t, "new", status.CurrentServer)
	assert.Equal(t, 2, status.Total)
}

func TestEndRunRacingStartRunNeverMarksNewRunIdle(t *testing.T) {
	base := newTestBase()

	for i := 0; i < 500; i++ {
		gen := base.StartRun()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			base.EndRun(gen)
		}()
		go func() {
			defer wg.Done()
			base.StartRun()
		}()
		wg.Wait()

		// Whichever order the two land in, the newest session started
		// after (or concurrently with) the stale EndRun and must still
		// report running.
		if !base.Status().Running {
			t.Fatalf("iteration %d: stale EndRun marked a newer run idle", i)
		}
	}
}

func TestLoopHonorsContextCancel(t *testing.T) {
	base := newTestBase(WithBundleSize[int](1), WithUpdateRate[int](0))

	gen := base.StartRun()
	base.SetItems(gen, []int{1, 2, 3})

	ctx, cancel := context.WithCancel(context.Background())
	err := base.Loop(ctx, gen, func(_ context.Context, item int) {
		if item == 1 {
			cancel()
		}
	})

	require.ErrorIs(t, err, context.Canceled)
}
