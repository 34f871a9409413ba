package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshprint/internal/config"
)

type fakeConn struct {
	closed atomic.Bool
}

func (f *fakeConn) Run(ctx context.Context, command string) (string, error) {
	return "", nil
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

func testConnConfig() config.ConnectionConfig {
	return config.ConnectionConfig{
		Host:           "printhost",
		Port:           22,
		Username:       "alice",
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	}
}

func newTestManager(dialer Dialer) (*Manager, *Serializer) {
	serializer := NewSerializer(0)
	serializer.Start()
	return NewManager(serializer, dialer), serializer
}

func TestManager_ConnectSuccess(t *testing.T) {
	conn := &fakeConn{}
	manager, serializer := newTestManager(func(cfg config.ConnectionConfig, password string) (Conn, error) {
		return conn, nil
	})
	defer serializer.Stop()

	require.NoError(t, manager.Connect(testConnConfig(), ""))

	status := manager.Status()
	assert.Equal(t, StateConnected, status.State)
	require.NotNil(t, status.ConnectedAt)
	assert.True(t, manager.Connected())

	// The serializer is bound to the new session.
	_, err := serializer.Execute(context.Background(), "lpstat -o q")
	assert.NoError(t, err)
}

func TestManager_ConnectRetriesThenFails(t *testing.T) {
	var attempts atomic.Int32
	manager, serializer := newTestManager(func(cfg config.ConnectionConfig, password string) (Conn, error) {
		attempts.Add(1)
		return nil, fmt.Errorf("connection refused")
	})
	defer serializer.Stop()

	err := manager.Connect(testConnConfig(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "connection refused")

	// Bounded retry: exactly MaxAttempts dials, then failure is final.
	assert.Equal(t, int32(3), attempts.Load())

	status := manager.Status()
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.Message, "connection refused")
	assert.NotNil(t, status.LastAttemptAt)
}

func TestManager_ConnectSucceedsOnRetry(t *testing.T) {
	var attempts atomic.Int32
	conn := &fakeConn{}
	manager, serializer := newTestManager(func(cfg config.ConnectionConfig, password string) (Conn, error) {
		if attempts.Add(1) < 3 {
			return nil, fmt.Errorf("connection refused")
		}
		return conn, nil
	})
	defer serializer.Stop()

	require.NoError(t, manager.Connect(testConnConfig(), ""))
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, StateConnected, manager.Status().State)
}

func TestManager_ConcurrentConnectRejected(t *testing.T) {
	proceed := make(chan struct{})
	manager, serializer := newTestManager(func(cfg config.ConnectionConfig, password string) (Conn, error) {
		<-proceed
		return &fakeConn{}, nil
	})
	defer serializer.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, manager.Connect(testConnConfig(), ""))
	}()

	require.Eventually(t, func() bool {
		return manager.Status().State == StateConnecting
	}, time.Second, time.Millisecond)

	// Only one connect may be in flight; the second is rejected, not queued.
	assert.ErrorIs(t, manager.Connect(testConnConfig(), ""), ErrAlreadyConnecting)

	close(proceed)
	wg.Wait()

	assert.ErrorIs(t, manager.Connect(testConnConfig(), ""), ErrAlreadyConnected)
}

func TestManager_DisconnectIdempotent(t *testing.T) {
	conn := &fakeConn{}
	manager, serializer := newTestManager(func(cfg config.ConnectionConfig, password string) (Conn, error) {
		return conn, nil
	})
	defer serializer.Stop()

	require.NoError(t, manager.Connect(testConnConfig(), ""))
	require.NoError(t, manager.Disconnect())

	assert.Equal(t, StateDisconnected, manager.Status().State)
	assert.True(t, conn.closed.Load())

	// Commands fail once the session is released.
	_, err := serializer.Execute(context.Background(), "lpstat -o q")
	assert.ErrorIs(t, err, ErrNotConnected)

	// Disconnecting again is a no-op.
	require.NoError(t, manager.Disconnect())
}

func TestManager_NotifiesSubscribers(t *testing.T) {
	manager, serializer := newTestManager(func(cfg config.ConnectionConfig, password string) (Conn, error) {
		return &fakeConn{}, nil
	})
	defer serializer.Stop()

	var mu sync.Mutex
	var states []State
	manager.OnStatusChange(func(status Status) {
		mu.Lock()
		states = append(states, status.State)
		mu.Unlock()
	})

	require.NoError(t, manager.Connect(testConnConfig(), ""))
	require.NoError(t, manager.Disconnect())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(states), 3)
	assert.Equal(t, StateConnecting, states[0])
	assert.Contains(t, states, StateConnected)
	assert.Equal(t, StateDisconnected, states[len(states)-1])
}

func TestManager_ConnReturnsLiveConnection(t *testing.T) {
	conn := &fakeConn{}
	manager, serializer := newTestManager(func(cfg config.ConnectionConfig, password string) (Conn, error) {
		return conn, nil
	})
	defer serializer.Stop()

	assert.Nil(t, manager.Conn())

	require.NoError(t, manager.Connect(testConnConfig(), ""))
	assert.Equal(t, Conn(conn), manager.Conn())

	require.NoError(t, manager.Disconnect())
	assert.Nil(t, manager.Conn())
}
