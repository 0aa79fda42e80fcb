// BTHome Bridge
//
// This is the main entry point for the BTHome to Homie bridge. It scans for
// BTHome v2 advertisements, follows zigbee2mqtt devices, and publishes both
// as Homie 4 devices on MQTT, one broker connection per device.
//
// For the topic layout, see: internal/homie/doc.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-bthome/internal/api"
	"github.com/nerrad567/gray-logic-bthome/internal/ble"
	"github.com/nerrad567/gray-logic-bthome/internal/bridges/bthome"
	"github.com/nerrad567/gray-logic-bthome/internal/bridges/health"
	"github.com/nerrad567/gray-logic-bthome/internal/bridges/zigbee2mqtt"
	codec "github.com/nerrad567/gray-logic-bthome/internal/bthome"
	"github.com/nerrad567/gray-logic-bthome/internal/homie"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bthome/internal/inspector"
	"github.com/nerrad567/gray-logic-bthome/internal/metrics"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv overrides defaultConfigPath.
const configEnv = "BTHOME_CONFIG"

// shutdownTimeout bounds the $state=disconnected publishes on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Components are started in dependency order and torn down by deferred calls
// in reverse: the API and inspector first, then the bridges, then every Homie
// device is disconnected, and the shared MQTT connection is closed last.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting BTHome bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Shared connection for subscriptions and health. Homie devices each get
	// their own connection from the dialer below.
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, influxdb.Options{Metrics: m, Logger: log})
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	registry, err := homie.NewRegistry(homie.Options{
		Dialer:         &homieDialer{cfg: cfg.MQTT, logger: log},
		BaseTopic:      cfg.Homie.BaseTopic,
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
		ClientIDPrefix: cfg.Homie.ClientIDPrefix,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating homie registry: %w", err)
	}
	defer func() {
		log.Info("disconnecting homie devices", "devices", registry.Count())
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := registry.Close(closeCtx); closeErr != nil {
			log.Error("error disconnecting homie devices", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	bridges := make(map[string]health.StatsSource)
	var z2mListing api.Zigbee2MQTTSource

	if cfg.BLE.Enabled {
		bridge, stop, startErr := startBTHome(gctx, g, cfg, registry, m, influxClient, log)
		if startErr != nil {
			return fmt.Errorf("starting BTHome bridge: %w", startErr)
		}
		defer stop()
		bridges[bthome.Source] = bridge
		defer startReporter(gctx, cfg, bthome.Source, mqttClient, bridge, log)()
	} else {
		log.Info("BTHome bridge disabled")
	}

	if cfg.Zigbee2MQTT.Enabled {
		z2m, startErr := startZigbee2MQTT(gctx, cfg, mqttClient, registry, m, influxClient, log)
		if startErr != nil {
			return fmt.Errorf("starting zigbee2mqtt bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping zigbee2mqtt bridge")
			z2m.Stop()
		}()
		bridges[zigbee2mqtt.Source] = z2m
		z2mListing = z2m
		defer startReporter(gctx, cfg, zigbee2mqtt.Source, mqttClient, z2m, log)()
	} else {
		log.Info("zigbee2mqtt bridge disabled")
	}

	var tree *inspector.Tree
	if cfg.Inspector.Enabled {
		insp, inspErr := inspector.New(inspector.Options{
			Subscriber: mqttClient,
			Topics:     inspectorTopics(cfg),
			MaxTopics:  cfg.Inspector.MaxTopics,
			Metrics:    m,
			Logger:     log,
		})
		if inspErr != nil {
			return fmt.Errorf("creating inspector: %w", inspErr)
		}
		if inspErr := insp.Start(); inspErr != nil {
			return fmt.Errorf("starting inspector: %w", inspErr)
		}
		defer func() {
			log.Info("stopping inspector")
			insp.Stop()
		}()
		tree = insp.Tree()
		log.Info("inspector started", "topics", inspectorTopics(cfg))
	} else {
		log.Info("inspector disabled")
	}

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Devices:  registry,
			MQTT:     mqttClient,
			Topics:   tree,
			Bridges:  bridges,
			Gatherer: reg,
			Metrics:  m,
			Version:  version,

			Zigbee2MQTT: z2mListing,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := srv.Start(gctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-gctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// A scanner failure cancels gctx too; report it instead of a clean exit.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge stopped: %w", err)
	}

	log.Info("BTHome bridge stopped")
	return nil
}

// startBTHome opens the HCI adapter and runs the BTHome bridge on g.
// The returned stop func closes the adapter.
func startBTHome(ctx context.Context, g *errgroup.Group, cfg *config.Config, registry *homie.Registry, m *metrics.Metrics, influxClient *influxdb.Client, log *logging.Logger) (*bthome.Bridge, func(), error) {
	scanner, err := ble.NewHCIScanner(ble.HCIOptions{
		DeviceID:     cfg.BLE.HCIDevice,
		ServiceUUIDs: []uint16{codec.ServiceUUID},
		Logger:       log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening hci%d: %w", cfg.BLE.HCIDevice, err)
	}

	opts := bthome.Options{
		Config:   cfg.BLE,
		Scanner:  scanner,
		Registry: registry,
		Metrics:  m,
		Logger:   log.With("bridge", bthome.Source),
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	bridge, err := bthome.New(opts)
	if err != nil {
		scanner.Close() //nolint:errcheck // already failing
		return nil, nil, err
	}

	g.Go(func() error {
		return bridge.Run(ctx)
	})
	log.Info("BTHome bridge started",
		"hci_device", cfg.BLE.HCIDevice,
		"known_devices", len(cfg.BLE.Devices),
		"allow_unknown", cfg.BLE.AllowUnknown,
	)

	stop := func() {
		log.Info("closing BLE adapter")
		if err := scanner.Close(); err != nil {
			log.Error("error closing BLE adapter", "error", err)
		}
	}
	return bridge, stop, nil
}

// startZigbee2MQTT subscribes the zigbee2mqtt bridge on the shared connection.
func startZigbee2MQTT(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client, registry *homie.Registry, m *metrics.Metrics, influxClient *influxdb.Client, log *logging.Logger) (*zigbee2mqtt.Bridge, error) {
	opts := zigbee2mqtt.Options{
		BaseTopic:  cfg.Zigbee2MQTT.BaseTopic,
		Subscriber: mqttClient,
		Registry:   registry,
		Metrics:    m,
		Logger:     log.With("bridge", zigbee2mqtt.Source),
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	bridge, err := zigbee2mqtt.New(opts)
	if err != nil {
		return nil, err
	}
	if err := bridge.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("zigbee2mqtt bridge started", "base_topic", cfg.Zigbee2MQTT.BaseTopic)
	return bridge, nil
}

// startReporter publishes a starting message and begins periodic health
// reporting for one bridge. The returned func stops the reporter.
func startReporter(ctx context.Context, cfg *config.Config, bridgeID string, pub health.Publisher, source health.StatsSource, log *logging.Logger) func() {
	reporter := health.NewReporter(health.Config{
		BridgeID:  bridgeID,
		Version:   version,
		Interval:  cfg.Health.Interval,
		Publisher: pub,
		Source:    source,
		Logger:    log,
	})
	if err := reporter.PublishStarting(ctx); err != nil {
		log.Warn("publishing starting health", "bridge", bridgeID, "error", err)
	}
	reporter.Start(ctx)
	return reporter.Stop
}

// inspectorTopics adds bridge health and status to the default filters.
// An explicit inspector.topics list is used as given.
func inspectorTopics(cfg *config.Config) []string {
	topics := cfg.InspectorTopics()
	if len(cfg.Inspector.Topics) == 0 {
		topics = append(topics, mqtt.Topics{}.AllBridgeHealth(), mqtt.Topics{}.AllBridgeStatus())
	}
	return topics
}

// homieDialer opens one MQTT connection per Homie device, with the device's
// $state=lost as its will and without the bridge status topic.
type homieDialer struct {
	cfg    config.MQTTConfig
	logger *logging.Logger
}

func (d *homieDialer) Dial(ctx context.Context, clientID string, will homie.Will) (homie.Bus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := mqtt.Connect(d.cfg,
		mqtt.WithClientID(clientID),
		mqtt.WithWill(will.Topic, will.Payload, will.QoS, will.Retained),
		mqtt.WithoutStatus(),
	)
	if err != nil {
		return nil, err
	}
	client.SetLogger(d.logger)
	return client, nil
}

// getConfigPath returns the configuration file path.
// Uses BTHOME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
