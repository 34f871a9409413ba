package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	mu       sync.Mutex
	calls    []string
	respond  func(command string) (string, error)
	blocking chan struct{}
}

func (f *fakeExecutor) Execute(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	blocking := f.blocking
	respond := f.respond
	f.mu.Unlock()

	if blocking != nil {
		<-blocking
	}
	if respond != nil {
		return respond(command)
	}
	return "", nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSource struct {
	mu        sync.Mutex
	connected bool
}

func (f *fakeSource) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func TestQueuePoller_RefreshNowPollsEveryQueue(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(command string) (string, error) {
			return "labprint-1 alice 1024 Mon\n", nil
		},
	}
	poller := NewQueuePoller(executor, &fakeSource{connected: true}, nil, []string{"a", "b"}, time.Hour)

	require.True(t, poller.RefreshNow())

	snapshotA, ok := poller.Snapshot("a")
	require.True(t, ok)
	assert.Empty(t, snapshotA.Error)
	require.Len(t, snapshotA.Entries, 1)
	assert.Equal(t, "labprint-1", snapshotA.Entries[0].RemoteID)

	_, ok = poller.Snapshot("b")
	assert.True(t, ok)
	assert.Equal(t, 2, executor.callCount())
}

func TestQueuePoller_PerQueueFailureIsolation(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(command string) (string, error) {
			if command == BuildListCommand("broken") {
				return "", fmt.Errorf("exit status 1")
			}
			return "labprint-9 bob 512 Mon\n", nil
		},
	}
	poller := NewQueuePoller(executor, &fakeSource{connected: true}, nil, []string{"broken", "healthy"}, time.Hour)

	poller.RefreshNow()

	broken, ok := poller.Snapshot("broken")
	require.True(t, ok)
	assert.Contains(t, broken.Error, "exit status 1")
	assert.Empty(t, broken.Entries)

	healthy, ok := poller.Snapshot("healthy")
	require.True(t, ok)
	assert.Empty(t, healthy.Error)
	require.Len(t, healthy.Entries, 1)
}

func TestQueuePoller_RefreshNowCoalesces(t *testing.T) {
	release := make(chan struct{})
	executor := &fakeExecutor{blocking: release}
	poller := NewQueuePoller(executor, &fakeSource{connected: true}, nil, []string{"a"}, time.Hour)

	firstDone := make(chan bool)
	go func() {
		firstDone <- poller.RefreshNow()
	}()

	// Wait for the first round to reach the executor, then a second
	// request must coalesce instead of starting another round.
	require.Eventually(t, func() bool {
		return executor.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, poller.RefreshNow())

	close(release)
	assert.True(t, <-firstDone)
	assert.Equal(t, 1, executor.callCount())
}

func TestQueuePoller_SuspendedWhileDisconnected(t *testing.T) {
	executor := &fakeExecutor{}
	source := &fakeSource{connected: false}
	poller := NewQueuePoller(executor, source, nil, []string{"a"}, 10*time.Millisecond)

	poller.Start()
	defer poller.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, executor.callCount())

	source.mu.Lock()
	source.connected = true
	source.mu.Unlock()

	require.Eventually(t, func() bool {
		return executor.callCount() > 0
	}, time.Second, 5*time.Millisecond)
}

func TestQueuePoller_OverrunRoundSkipsTick(t *testing.T) {
	var mu sync.Mutex
	var starts []time.Time
	executor := &fakeExecutor{
		respond: func(command string) (string, error) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			time.Sleep(70 * time.Millisecond)
			return "", nil
		},
	}
	poller := NewQueuePoller(executor, &fakeSource{connected: true}, nil, []string{"a"}, 50*time.Millisecond)

	poller.Start()
	defer poller.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	// Every 70ms round overruns the 50ms interval. The tick that fired
	// mid-round is skipped, so consecutive rounds start two intervals
	// apart; back-to-back rounds would show a gap of only ~70ms.
	for i := 1; i < 3; i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, 90*time.Millisecond,
			"round %d started only %v after the previous one", i, gap)
	}
}

func TestQueuePoller_PublishesSnapshots(t *testing.T) {
	bus := NewBus(10)
	var mu sync.Mutex
	var snapshots []QueueSnapshot
	bus.Subscribe(func(event Event) {
		if event.Type == EventSnapshotPublished && event.Snapshot != nil {
			mu.Lock()
			snapshots = append(snapshots, *event.Snapshot)
			mu.Unlock()
		}
	})

	executor := &fakeExecutor{}
	poller := NewQueuePoller(executor, &fakeSource{connected: true}, bus, []string{"a", "b"}, time.Hour)

	poller.RefreshNow()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 2)
	assert.Equal(t, "a", snapshots[0].Queue)
	assert.Equal(t, "b", snapshots[1].Queue)
}
