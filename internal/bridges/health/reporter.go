// Package health publishes periodic bridge health messages.
//
// Each bridge reports a retained JSON document on graylogic/health/{bridge}
// so operators can see at a glance whether the scanner or subscription is
// delivering and how many devices are live.
package health

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	defaultInterval = 30 * time.Second
	publishTimeout  = 5 * time.Second
)

// Publisher is the interface for publishing health messages.
// Implemented by *mqtt.Client.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsSource is implemented by each bridge.
type StatsSource interface {
	Stats() Stats
}

// Logger is the logging interface used by the reporter.
type Logger interface {
	Error(msg string, args ...any)
}

// Config holds configuration for a Reporter.
type Config struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	Publisher Publisher
	Source    StatsSource
	Logger    Logger
}

// Reporter manages periodic health status reporting.
type Reporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher Publisher
	source    StatsSource
	logger    Logger

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewReporter creates a reporter. Call Start to begin reporting.
func NewReporter(cfg Config) *Reporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Reporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		logger:    cfg.Logger,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is done or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		r.publishStatus(context.Background(), StatusStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (r *Reporter) PublishStarting(ctx context.Context) error {
	return r.publishStatus(ctx, StatusStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (r *Reporter) PublishNow(ctx context.Context) error {
	status, reason := r.determineStatus()
	return r.publishStatus(ctx, status, reason)
}

func (r *Reporter) reportLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.PublishNow(ctx); err != nil {
		r.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.PublishNow(ctx); err != nil {
				r.logError("failed to publish health", err)
			}
		}
	}
}

func (r *Reporter) determineStatus() (Status, string) {
	if r.publisher == nil || !r.publisher.IsConnected() {
		return StatusDegraded, "MQTT disconnected"
	}
	if r.source != nil && !r.source.Stats().Running {
		return StatusDegraded, "source not running"
	}
	return StatusHealthy, ""
}

func (r *Reporter) publishStatus(ctx context.Context, status Status, reason string) error {
	if r.publisher == nil {
		return nil
	}

	var stats Stats
	if r.source != nil {
		stats = r.source.Stats()
	}

	msg := NewMessage(r.bridgeID, r.version, status, stats, r.startTime)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.publisher.Publish(ctx, Topic(r.bridgeID), payload, 1, true)
}

func (r *Reporter) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, "bridge", r.bridgeID, "error", err)
	}
}
