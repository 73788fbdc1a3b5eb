package authz

import (
	"sync"
	"time"

	"aegis-backend/internal/abac"
)

// DecisionRecord is one ABAC decision captured at the authorization
// boundary. Shadow mode records every decision; enforce mode records denies.
// It never carries token material, only subject/tenant identifiers.
type DecisionRecord struct {
	TenantID     string    `json:"tenant_id"`
	Subject      string    `json:"subject"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	Mode         abac.Mode `json:"mode"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason"`
	AllowRuleIDs []string  `json:"allow_rule_ids"`
	DenyRuleIDs  []string  `json:"deny_rule_ids"`
	At           time.Time `json:"at"`
}

// DecisionSink receives decision records. Record must not block the request.
type DecisionSink interface {
	Record(rec DecisionRecord)
}

// NoopSink discards all records. Used when the decision log is disabled.
type NoopSink struct{}

func (NoopSink) Record(DecisionRecord) {}

// BufferedSink collects records in memory and flushes them in batches, on a
// timer or when full. The flush target is injected so the sink stays
// storage-agnostic.
type BufferedSink struct {
	mu      sync.Mutex
	records []DecisionRecord
	maxSize int
	flush   func([]DecisionRecord)
	ticker  *time.Ticker
	done    chan struct{}
}

// NewBufferedSink creates a sink that flushes on a timer or when full.
func NewBufferedSink(maxSize int, flushInterval time.Duration, flush func([]DecisionRecord)) *BufferedSink {
	s := &BufferedSink{
		maxSize: maxSize,
		flush:   flush,
		done:    make(chan struct{}),
	}
	s.ticker = time.NewTicker(flushInterval)
	go s.run()
	return s
}

func (s *BufferedSink) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.Flush()
		}
	}
}

// Record adds a decision to the buffer. If the buffer is full, a flush is
// triggered asynchronously.
func (s *BufferedSink) Record(rec DecisionRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	shouldFlush := len(s.records) >= s.maxSize
	s.mu.Unlock()
	if shouldFlush {
		go s.Flush()
	}
}

// Flush hands all buffered records to the flush target in one batch.
func (s *BufferedSink) Flush() {
	s.mu.Lock()
	if len(s.records) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.records
	s.records = nil
	s.mu.Unlock()

	s.flush(batch)
}

// Stop halts the background ticker and flushes remaining records.
func (s *BufferedSink) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)
	s.Flush()
}
