package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"sshprint/internal/config"
	"sshprint/internal/ssh"
)

var (
	ErrAlreadyConnecting = errors.New("connect already in progress")
	ErrAlreadyConnected  = errors.New("already connected")
)

// Conn is a live remote session plus the ability to tear it down.
type Conn interface {
	Remote
	Close() error
}

// Dialer opens a new authenticated session. Injectable so tests can
// connect to a fake host.
type Dialer func(cfg config.ConnectionConfig, password string) (Conn, error)

// SSHDialer is the production dialer backed by the ssh client.
func SSHDialer(cfg config.ConnectionConfig, password string) (Conn, error) {
	return ssh.NewClient(cfg, password)
}

// Manager owns the connection state machine and the one remote session.
// All status transitions happen here; other components only read status
// or receive change notifications.
type Manager struct {
	mu          sync.Mutex
	status      Status
	conn        Conn
	serializer  *Serializer
	dialer      Dialer
	tickerStop  chan struct{}
	subscribers []func(Status)
}

func NewManager(serializer *Serializer, dialer Dialer) *Manager {
	return &Manager{
		status:     disconnected(),
		serializer: serializer,
		dialer:     dialer,
	}
}

// OnStatusChange registers a callback invoked after every status
// transition, including the advisory per-second updates while
// connecting.
func (m *Manager) OnStatusChange(fn func(Status)) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.mu.Unlock()
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connected reports whether a live session is bound.
func (m *Manager) Connected() bool {
	return m.Status().State == StateConnected
}

// Conn returns the live connection, or nil when disconnected. Callers
// that need transport-specific features (SFTP) type-assert the result.
func (m *Manager) Conn() Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Connect dials the remote host, retrying transient failures a bounded
// number of times before declaring failure. Callers observe one logical
// attempt: the retry policy is private to the Manager. Only one connect
// may be in flight; a concurrent call is rejected, not queued.
func (m *Manager) Connect(cfg config.ConnectionConfig, password string) error {
	m.mu.Lock()
	switch m.status.State {
	case StateConnecting:
		m.mu.Unlock()
		return ErrAlreadyConnecting
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.status = connecting(0)
	m.tickerStop = make(chan struct{})
	tickerStop := m.tickerStop
	m.mu.Unlock()
	m.notify()

	go m.tickElapsed(tickerStop)

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		conn, err := m.dialer(cfg, password)
		if err == nil {
			m.mu.Lock()
			close(tickerStop)
			m.tickerStop = nil
			m.conn = conn
			now := time.Now()
			m.status = connected(now)
			m.mu.Unlock()

			m.serializer.Bind(conn)
			m.notify()
			log.Printf("[session] connected to %s:%d as %s", cfg.Host, cfg.Port, cfg.Username)
			return nil
		}

		lastErr = err
		log.Printf("[session] connection attempt %d/%d failed: %v", attempt+1, attempts, err)

		if attempt < attempts-1 {
			time.Sleep(backoff(baseDelay, attempt))
		}
	}

	m.mu.Lock()
	close(tickerStop)
	m.tickerStop = nil
	m.conn = nil
	m.status = failed(lastErr.Error(), time.Now())
	m.mu.Unlock()
	m.notify()

	return fmt.Errorf("connection failed after %d attempts: %w", attempts, lastErr)
}

// Disconnect releases the serializer's session reference and closes the
// underlying connection. Idempotent: disconnecting while already
// disconnected is a no-op.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.status.State == StateConnecting {
		m.mu.Unlock()
		return ErrAlreadyConnecting
	}
	if m.status.State == StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	conn := m.conn
	m.conn = nil
	m.status = disconnected()
	m.mu.Unlock()

	m.serializer.Release()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	m.notify()
	log.Printf("[session] disconnected")
	return err
}

// tickElapsed drives the advisory elapsed-seconds counter shown while
// connecting. It is cosmetic state only; the retry loop does not depend
// on it.
func (m *Manager) tickElapsed(stop chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	elapsed := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			elapsed++
			m.mu.Lock()
			if m.status.State != StateConnecting {
				m.mu.Unlock()
				return
			}
			m.status = connecting(elapsed)
			m.mu.Unlock()
			m.notify()
		}
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	status := m.status
	subscribers := make([]func(Status), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subscribers {
		fn(status)
	}
}

func backoff(baseDelay time.Duration, attempt int) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	maxDelay := 30 * time.Second
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
