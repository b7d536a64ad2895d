package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ecoads/internal/amqp"
)

// EventSource delivers broker events until ctx is done or the stream breaks.
type EventSource interface {
	ConsumeEvents(ctx context.Context, handler func(*amqp.Event) error) error
}

// EventRecorder persists one event; recording the same event twice is a no-op.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e *amqp.Event) error
}

// AuditProcessorConfig holds configuration for the audit processor
type AuditProcessorConfig struct {
	// RestartDelay is the pause before re-subscribing after the stream broke (default: 5s)
	RestartDelay time.Duration
	// MaxRestartDelay caps the doubling restart delay (default: 1m)
	MaxRestartDelay time.Duration
}

func DefaultAuditProcessorConfig() AuditProcessorConfig {
	return AuditProcessorConfig{
		RestartDelay:    5 * time.Second,
		MaxRestartDelay: time.Minute,
	}
}

// AuditProcessor copies broker events into the audit store.
type AuditProcessor struct {
	source   EventSource
	recorder EventRecorder
	config   AuditProcessorConfig

	recorded atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

func NewAuditProcessor(source EventSource, recorder EventRecorder, config AuditProcessorConfig) *AuditProcessor {
	return &AuditProcessor{source: source, recorder: recorder, config: config}
}

// Start begins consuming. Returns an error if already running.
func (p *AuditProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("audit processor is already running")
	}
	if p.source == nil || p.recorder == nil {
		return fmt.Errorf("audit processor needs an event source and a recorder")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.doneCh = make(chan struct{})
	p.running = true
	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Audit processor started", "component", "audit")
	return nil
}

// Stop cancels consumption and waits for the loop to exit.
func (p *AuditProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel, done := p.cancel, p.doneCh
	p.mu.Unlock()

	cancel()
	select {
	case <-done:
		slog.InfoContext(ctx, "Audit processor stopped gracefully", "component", "audit", "recorded", p.Recorded())
	case <-ctx.Done():
		slog.WarnContext(ctx, "Audit processor stop timed out", "component", "audit")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *AuditProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Recorded returns how many events were stored since Start.
func (p *AuditProcessor) Recorded() int64 { return p.recorded.Load() }

func (p *AuditProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	delay := p.config.RestartDelay
	for {
		err := p.source.ConsumeEvents(ctx, func(e *amqp.Event) error {
			return p.handle(ctx, e)
		})
		if ctx.Err() != nil {
			return
		}
		slog.WarnContext(ctx, "Event stream ended, restarting", "component", "audit", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, p.config.MaxRestartDelay)
	}
}

func (p *AuditProcessor) handle(ctx context.Context, e *amqp.Event) error {
	if e == nil {
		return errors.New("nil event")
	}
	if err := p.recorder.RecordEvent(ctx, e); err != nil {
		return fmt.Errorf("record %s %s: %w", e.Type, e.ID, err)
	}
	p.recorded.Add(1)
	slog.DebugContext(ctx, "Event recorded", "component", "audit", "id", e.ID, "type", e.Type)
	return nil
}
