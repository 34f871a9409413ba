package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"sshprint/internal/core"
	"sshprint/internal/db"
	"sshprint/internal/session"
)

type WebhookEvent string

const (
	EventJobQueued         WebhookEvent = "job_queued"
	EventJobPrinting       WebhookEvent = "job_printing"
	EventJobCompleted      WebhookEvent = "job_completed"
	EventJobFailed         WebhookEvent = "job_failed"
	EventJobCancelled      WebhookEvent = "job_cancelled"
	EventConnectionChanged WebhookEvent = "connection_changed"
)

type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	Signature string      `json:"signature,omitempty"`
}

type JobEventData struct {
	JobID        string `json:"job_id"`
	Name         string `json:"name"`
	Queue        string `json:"queue"`
	RemoteID     string `json:"remote_id,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type ConnectionEventData struct {
	State         string     `json:"state"`
	Message       string     `json:"message,omitempty"`
	ConnectedAt   *time.Time `json:"connected_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

type Config struct {
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
}

type task struct {
	webhookID int64
	event     WebhookEvent
	payload   *WebhookPayload
	attempt   int
}

// Sender delivers job and connection events to registered webhook URLs
// with HMAC-SHA256 signatures. Delivery runs on a small worker pool
// with bounded retry; 4xx responses are not retried.
type Sender struct {
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	workers    int
	queue      chan *task
	stopCh     chan struct{}
	wg         sync.WaitGroup

	mu        sync.Mutex
	lastState session.State
}

func NewSender(config Config) *Sender {
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}

	return &Sender{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retryCount: config.RetryCount,
		retryDelay: config.RetryDelay,
		workers:    config.WorkerCount,
		queue:      make(chan *task, config.QueueSize),
		stopCh:     make(chan struct{}),
	}
}

// Attach subscribes the sender to the core event bus.
func (s *Sender) Attach(bus *core.Bus) {
	bus.Subscribe(func(event core.Event) {
		switch event.Type {
		case core.EventJobUpdated:
			s.handleJobEvent(event.Job)
		case core.EventConnectionChanged:
			s.handleConnectionEvent(event.Status)
		}
	})
}

func (s *Sender) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sender) handleJobEvent(job *core.PrintJob) {
	if job == nil {
		return
	}

	var event WebhookEvent
	switch job.Status {
	case core.JobStatusQueued:
		event = EventJobQueued
	case core.JobStatusPrinting:
		event = EventJobPrinting
	case core.JobStatusCompleted:
		event = EventJobCompleted
	case core.JobStatusFailed:
		event = EventJobFailed
	case core.JobStatusCancelled:
		event = EventJobCancelled
	default:
		return
	}

	s.enqueue(event, &JobEventData{
		JobID:        job.ID,
		Name:         job.Name,
		Queue:        job.Queue,
		RemoteID:     job.RemoteID,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
	})
}

func (s *Sender) handleConnectionEvent(status *session.Status) {
	if status == nil {
		return
	}

	// The manager also publishes advisory elapsed-second updates while
	// connecting; webhooks only care about actual state changes.
	s.mu.Lock()
	if status.State == s.lastState {
		s.mu.Unlock()
		return
	}
	s.lastState = status.State
	s.mu.Unlock()

	s.enqueue(EventConnectionChanged, &ConnectionEventData{
		State:         string(status.State),
		Message:       status.Message,
		ConnectedAt:   status.ConnectedAt,
		LastAttemptAt: status.LastAttemptAt,
	})
}

func (s *Sender) enqueue(event WebhookEvent, data interface{}) {
	webhooks, err := db.Webhooks.ListWebhooksForEvent(context.Background(), string(event))
	if err != nil {
		log.Printf("[webhook] failed to get webhooks for event %s: %v", event, err)
		return
	}

	for _, webhook := range webhooks {
		t := &task{
			webhookID: webhook.ID,
			event:     event,
			payload: &WebhookPayload{
				Event:     string(event),
				Timestamp: time.Now(),
				Data:      data,
			},
			attempt: 0,
		}

		select {
		case s.queue <- t:
		default:
			log.Printf("[webhook] queue full, dropping webhook %d for event %s", webhook.ID, event)
		}
	}
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				log.Printf("[webhook worker %d] failed to send webhook %d for event %s after %d attempts: %v",
					id, t.webhookID, t.event, t.attempt, err)
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	webhook, err := db.Webhooks.GetWebhookByID(context.Background(), t.webhookID)
	if err != nil {
		return fmt.Errorf("get webhook: %w", err)
	}

	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.sendRequest(webhook, t.payload)
		if err == nil {
			return nil
		}

		lastErr = err

		if isClientError(err) {
			log.Printf("[webhook] client error for webhook %d, not retrying: %v", webhook.ID, err)
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			log.Printf("[webhook] retry %d/%d for webhook %d in %v: %v",
				t.attempt, s.retryCount, webhook.ID, backoff, err)

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) sendRequest(webhook *db.Webhook, payload *WebhookPayload) error {
	payloadBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if webhook.Secret != "" {
		payload.Signature = s.signPayload(payloadBytes, webhook.Secret)
	}

	fullPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", webhook.URL, bytes.NewReader(fullPayload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", payload.Signature)
	req.Header.Set("X-Webhook-Event", payload.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}

	return nil
}

func (s *Sender) signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	if strings.Contains(errStr, "http error: 4") {
		return true
	}
	return false
}
