package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
}

func (f *fakeRemote) Run(ctx context.Context, command string) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()
	return "ok: " + command, nil
}

func (f *fakeRemote) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func TestSerializer_FailsFastWhenUnbound(t *testing.T) {
	s := NewSerializer(0)
	s.Start()
	defer s.Stop()

	_, err := s.Execute(context.Background(), "lpstat -o q")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSerializer_RunsCommandsInOrder(t *testing.T) {
	s := NewSerializer(0)
	s.Start()
	defer s.Stop()

	remote := &fakeRemote{delay: time.Millisecond}
	s.Bind(remote)

	var wg sync.WaitGroup
	commands := []string{"first", "second", "third", "fourth"}
	for _, command := range commands {
		command := command
		wg.Add(1)
		go func() {
			defer wg.Done()
			output, err := s.Execute(context.Background(), command)
			assert.NoError(t, err)
			assert.Equal(t, "ok: "+command, output)
		}()
		// Stagger submissions so admission order is deterministic.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, commands, remote.commands())
}

func TestSerializer_ReleaseFailsQueuedCommands(t *testing.T) {
	s := NewSerializer(0)
	s.Start()
	defer s.Stop()

	s.Bind(&fakeRemote{})
	s.Release()

	_, err := s.Execute(context.Background(), "lpstat -o q")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSerializer_ContextCancelUnblocksCaller(t *testing.T) {
	s := NewSerializer(0)
	s.Start()
	defer s.Stop()

	s.Bind(&fakeRemote{delay: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Execute(ctx, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestSerializer_StopUnblocksQueuedCallers(t *testing.T) {
	s := NewSerializer(0)
	s.Start()

	s.Bind(&fakeRemote{delay: 200 * time.Millisecond})

	// Occupy the worker with a slow command.
	go s.Execute(context.Background(), "slow")
	time.Sleep(20 * time.Millisecond)

	// A second caller with no deadline queues behind it.
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Execute(context.Background(), "queued")
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrNotConnected)
	case <-time.After(time.Second):
		t.Fatal("queued caller still blocked after Stop")
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSerializer_RebindSwitchesSession(t *testing.T) {
	s := NewSerializer(0)
	s.Start()
	defer s.Stop()

	first := &fakeRemote{}
	second := &fakeRemote{}

	s.Bind(first)
	_, err := s.Execute(context.Background(), "one")
	require.NoError(t, err)

	s.Bind(second)
	_, err = s.Execute(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, []string{"one"}, first.commands())
	assert.Equal(t, []string{"two"}, second.commands())
}
