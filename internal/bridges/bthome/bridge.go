package bthome

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-bthome/internal/ble"
	"github.com/nerrad567/gray-logic-bthome/internal/bridges/health"
	codec "github.com/nerrad567/gray-logic-bthome/internal/bthome"
	"github.com/nerrad567/gray-logic-bthome/internal/homie"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bthome/internal/metrics"
)

// Source labels metrics, telemetry and health for this bridge.
const Source = "bthome"

const defaultQueueSize = 16

// Logger is the logging interface used by the bridge.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceRegistry brings devices up on the Homie bus.
// Implemented by *homie.Registry.
type DeviceRegistry interface {
	Register(ctx context.Context, pending *homie.PendingDevice) (*homie.Device, error)
}

// Telemetry records published readings. Implemented by *influxdb.Client.
type Telemetry interface {
	WriteReading(deviceID, nodeID, propertyID, source string, value any, ts time.Time)
	WriteLink(deviceID, source string, rssi int, ts time.Time)
	Flush()
}

// Options holds everything needed to create a bridge.
type Options struct {
	Config   config.BLEConfig
	Scanner  ble.Scanner
	Registry DeviceRegistry

	// Metrics, Telemetry and Logger are optional.
	Metrics   *metrics.Metrics
	Telemetry Telemetry
	Logger    Logger
}

// Bridge turns BTHome advertisements into Homie devices.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	scanner   ble.Scanner
	registry  DeviceRegistry
	resolver  *resolver
	metrics   *metrics.Metrics
	telemetry Telemetry
	logger    Logger

	queueSize   int
	minInterval time.Duration

	workers map[string]*worker
	mu      sync.Mutex

	running   atomic.Bool
	received  atomic.Uint64
	published atomic.Uint64
	errors    atomic.Uint64
	devices   atomic.Int64
}

// New creates a bridge. Call Run to start scanning.
func New(opts Options) (*Bridge, error) {
	if opts.Scanner == nil {
		return nil, ErrNoScanner
	}
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}

	queueSize := opts.Config.QueueSize
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Bridge{
		scanner:     opts.Scanner,
		registry:    opts.Registry,
		resolver:    newResolver(opts.Config),
		metrics:     opts.Metrics,
		telemetry:   opts.Telemetry,
		logger:      logger,
		queueSize:   queueSize,
		minInterval: opts.Config.MinInterval,
		workers:     make(map[string]*worker),
	}, nil
}

// Run scans until ctx is done or the scanner fails. Workers are started as
// peripherals are discovered and all of them have returned when Run does,
// with their telemetry flushed.
func (b *Bridge) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	b.running.Store(true)
	defer b.running.Store(false)
	if b.telemetry != nil {
		defer b.telemetry.Flush()
	}

	g.Go(func() error {
		err := b.scanner.Scan(gctx, func(adv ble.Advertisement) {
			b.dispatch(gctx, g, adv)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("scanner stopped", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}

// Stats implements health.StatsSource.
func (b *Bridge) Stats() health.Stats {
	return health.Stats{
		Running:   b.running.Load(),
		Received:  b.received.Load(),
		Published: b.published.Load(),
		Errors:    b.errors.Load(),
		Devices:   int(b.devices.Load()),
	}
}

// Peripherals returns the number of peripherals with a running worker.
func (b *Bridge) Peripherals() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.workers)
}

// dispatch runs on the scanning goroutine.
func (b *Bridge) dispatch(ctx context.Context, g *errgroup.Group, adv ble.Advertisement) {
	data, ok := adv.Data(codec.ServiceUUID)
	if !ok {
		return
	}
	b.received.Add(1)

	id, err := b.resolver.resolve(adv)
	if err != nil {
		b.metrics.Advertisement(Source, metrics.ResultSkipped)
		b.logger.Warn("skipping advertisement", "address", adv.Address, "error", err)
		return
	}

	w := b.workerFor(ctx, g, id)
	if !w.limiter.Allow() {
		b.metrics.Advertisement(Source, metrics.ResultThrottled)
		return
	}

	item := advertisement{
		data:     append([]byte(nil), data...),
		rssi:     adv.RSSI,
		received: time.Now(),
	}
	select {
	case w.queue <- item:
	case <-ctx.Done():
	}
}

// workerFor returns the worker of a peripheral, starting it on first sight.
func (b *Bridge) workerFor(ctx context.Context, g *errgroup.Group, id Identity) *worker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, ok := b.workers[id.ID]; ok {
		return w
	}

	limit := rate.Inf
	if b.minInterval > 0 {
		limit = rate.Every(b.minInterval)
	}
	w := &worker{
		bridge:   b,
		identity: id,
		queue:    make(chan advertisement, b.queueSize),
		limiter:  rate.NewLimiter(limit, 1),
	}
	b.workers[id.ID] = w
	g.Go(func() error {
		w.run(ctx)
		return nil
	})

	b.logger.Debug("peripheral discovered", "device_id", id.ID, "name", id.Name)
	return w
}
