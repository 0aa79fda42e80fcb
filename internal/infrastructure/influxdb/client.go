package influxdb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"

	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bthome/internal/metrics"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	millisecondsPerSecond = 1000

	// unknownSource labels failed batches whose points carry no source tag.
	unknownSource = "unknown"
)

var errUnhealthy = errors.New("server not healthy")

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Options holds the optional collaborators of a Client.
type Options struct {
	// Metrics receives one write error per source of every failed batch.
	Metrics *metrics.Metrics
	Logger  Logger
}

// Client records bridge readings through the batched, non-blocking write API.
//
// Writes never block a bridge. A batch the server rejects is counted against
// every source it carries and left to the library's retry policy; the final
// error is logged.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	metrics  *metrics.Metrics
	logger   Logger

	closed atomic.Bool
}

// Connect pings the server at cfg.URL and prepares the write API for
// cfg.Org and cfg.Bucket. Batch size and flush interval fall back to 100
// points and 10 seconds.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, opts Options) (*Client, error) {
	// #nosec G115 -- both values are positive
	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(positive(cfg.BatchSize, defaultBatchSize))).
		SetFlushInterval(uint(positive(cfg.FlushInterval, defaultFlushInterval)) * millisecondsPerSecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := newClient(client.WriteAPI(cfg.Org, cfg.Bucket), opts)
	c.client = client
	return c, nil
}

func newClient(writeAPI api.WriteAPI, opts Options) *Client {
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	c := &Client{
		writeAPI: writeAPI,
		metrics:  opts.Metrics,
		logger:   logger,
	}
	writeAPI.SetWriteFailedCallback(c.batchFailed)
	go c.logWriteErrors(writeAPI.Errors())
	return c
}

func positive(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return errUnhealthy
	}
	return nil
}

// batchFailed counts a failed batch once per source it carries. Returning
// true keeps the batch for retrying.
func (c *Client) batchFailed(batch string, err influxhttp.Error, attempts uint) bool {
	sources := batchSources(batch)
	for _, source := range sources {
		c.metrics.TelemetryWriteError(source)
	}
	c.logger.Debug("InfluxDB batch failed",
		"sources", sources,
		"status", err.StatusCode,
		"attempt", attempts,
		"error", err.Error(),
	)
	return true
}

// logWriteErrors runs until the write API is closed.
func (c *Client) logWriteErrors(errs <-chan error) {
	for err := range errs {
		c.logger.Error("InfluxDB write failed", "error", err)
	}
}

// batchSources returns the distinct source tags of a line protocol batch in
// order of appearance.
func batchSources(batch string) []string {
	var sources []string
	for _, line := range strings.Split(batch, "\n") {
		if line == "" {
			continue
		}
		key, _, _ := strings.Cut(line, " ")
		source := unknownSource
		for _, tag := range strings.Split(key, ",")[1:] {
			if v, ok := strings.CutPrefix(tag, "source="); ok {
				source = v
				break
			}
		}
		if !slices.Contains(sources, source) {
			sources = append(sources, source)
		}
	}
	return sources
}

// Close flushes buffered points and closes the client. Later writes are
// dropped.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeAPI.Flush()
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() || c.client == nil {
		return ErrNotConnected
	}
	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// IsConnected reports whether the client still accepts writes.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// Flush sends every buffered point and blocks until done. Bridges call it
// when they stop so their last readings are not held until Close.
// It is a no-op after Close.
func (c *Client) Flush() {
	if c.closed.Load() {
		return
	}
	c.writeAPI.Flush()
}
