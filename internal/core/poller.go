package core

import (
	"context"
	"log"
	"sync"
	"time"
)

// Executor runs one remote command through the command serializer.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// ConnectionSource reports whether a live session exists. Polling is
// suspended whenever it does not.
type ConnectionSource interface {
	Connected() bool
}

// QueuePoller periodically lists every known queue's pending jobs and
// republishes full snapshots. One poller instance is constructed at
// startup and owns its own in-flight flag and stop channel; there is no
// ambient global coordination state.
type QueuePoller struct {
	executor Executor
	source   ConnectionSource
	bus      *Bus
	queues   []string
	interval time.Duration

	mu        sync.Mutex
	inFlight  bool
	snapshots map[string]QueueSnapshot
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
}

func NewQueuePoller(executor Executor, source ConnectionSource, bus *Bus, queues []string, interval time.Duration) *QueuePoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &QueuePoller{
		executor:  executor,
		source:    source,
		bus:       bus,
		queues:    queues,
		interval:  interval,
		snapshots: make(map[string]QueueSnapshot),
		stopCh:    make(chan struct{}),
	}
}

func (p *QueuePoller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop()
}

func (p *QueuePoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
}

func (p *QueuePoller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if !p.source.Connected() {
				continue
			}
			p.RefreshNow()
			// An overrunning round leaves the tick that fired during it
			// buffered in the ticker. Drop it so the next round waits
			// for the next boundary instead of starting immediately.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// RefreshNow triggers one polling round. Manual refreshes coalesce with
// the scheduled tick: when a round is already in flight the call is a
// no-op and returns false.
func (p *QueuePoller) RefreshNow() bool {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return false
	}
	p.inFlight = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	p.pollRound()
	return true
}

// pollRound lists every known queue once. Per-queue failures are
// isolated: a failing queue gets a snapshot carrying the error while
// the remaining queues still refresh.
func (p *QueuePoller) pollRound() {
	for _, queue := range p.queues {
		select {
		case <-p.stopCh:
			return
		default:
		}

		snapshot := QueueSnapshot{
			Queue:       queue,
			RefreshedAt: time.Now(),
		}

		output, err := p.executor.Execute(context.Background(), BuildListCommand(queue))
		if err != nil {
			snapshot.Error = err.Error()
			log.Printf("[poller] listing %s failed: %v", queue, err)
		} else {
			snapshot.Entries = ParseQueueListing(output)
		}

		p.mu.Lock()
		p.snapshots[queue] = snapshot
		p.mu.Unlock()

		if p.bus != nil {
			published := snapshot
			p.bus.Publish(Event{Type: EventSnapshotPublished, Snapshot: &published})
		}
	}
}

// Snapshot returns the latest snapshot for one queue.
func (p *QueuePoller) Snapshot(queue string) (QueueSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot, ok := p.snapshots[queue]
	return snapshot, ok
}

// Snapshots returns the latest snapshot of every queue that has been
// polled at least once.
func (p *QueuePoller) Snapshots() []QueueSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]QueueSnapshot, 0, len(p.snapshots))
	for _, queue := range p.queues {
		if snapshot, ok := p.snapshots[queue]; ok {
			out = append(out, snapshot)
		}
	}
	return out
}

// Queues returns the configured queue names.
func (p *QueuePoller) Queues() []string {
	out := make([]string, len(p.queues))
	copy(out, p.queues)
	return out
}
