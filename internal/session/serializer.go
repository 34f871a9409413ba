package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNotConnected is returned by Execute when no remote session is
// bound. Commands never queue against a dead session.
var ErrNotConnected = errors.New("not connected to remote host")

// Remote runs one command on the remote host and returns its combined
// output. Implemented by the ssh client; faked in tests.
type Remote interface {
	Run(ctx context.Context, command string) (string, error)
}

type execRequest struct {
	ctx     context.Context
	command string
	done    chan execResponse
}

type execResponse struct {
	output string
	err    error
}

// Serializer owns the single-flight command queue over the one remote
// session. The underlying shell has no concurrent request/response
// framing, so commands are admitted in submission order and run to
// completion one at a time. The Serializer shuttles text only; it never
// interprets command semantics.
type Serializer struct {
	mu      sync.Mutex
	remote  Remote
	queue   chan *execRequest
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewSerializer(queueSize int) *Serializer {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Serializer{
		queue:  make(chan *execRequest, queueSize),
		stopCh: make(chan struct{}),
	}
}

func (s *Serializer) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker()
}

func (s *Serializer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

// Bind attaches a live remote session. Called by the Manager on
// successful connect.
func (s *Serializer) Bind(remote Remote) {
	s.mu.Lock()
	s.remote = remote
	s.mu.Unlock()
}

// Release detaches the current session. Queued commands that have not
// started yet fail with ErrNotConnected when their turn comes.
func (s *Serializer) Release() {
	s.mu.Lock()
	s.remote = nil
	s.mu.Unlock()
}

func (s *Serializer) current() Remote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// Execute queues one command and blocks until it has run to completion
// on the remote session. Fails immediately with ErrNotConnected when no
// session is bound, without queueing.
func (s *Serializer) Execute(ctx context.Context, command string) (string, error) {
	if s.current() == nil {
		return "", ErrNotConnected
	}

	req := &execRequest{
		ctx:     ctx,
		command: command,
		done:    make(chan execResponse, 1),
	}

	select {
	case s.queue <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.stopCh:
		return "", ErrNotConnected
	}

	select {
	case resp := <-req.done:
		return resp.output, resp.err
	case <-ctx.Done():
		// The worker still drains the entry; the caller just stops
		// waiting for it.
		return "", ctx.Err()
	case <-s.stopCh:
		// Shutdown must not strand callers queued behind a slow
		// command; their request will never run.
		return "", ErrNotConnected
	}
}

func (s *Serializer) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case req := <-s.queue:
			select {
			case <-s.stopCh:
				req.done <- execResponse{err: ErrNotConnected}
				continue
			default:
			}

			if err := req.ctx.Err(); err != nil {
				req.done <- execResponse{err: err}
				continue
			}

			remote := s.current()
			if remote == nil {
				req.done <- execResponse{err: ErrNotConnected}
				continue
			}

			output, err := remote.Run(req.ctx, req.command)
			req.done <- execResponse{output: output, err: err}
		}
	}
}
