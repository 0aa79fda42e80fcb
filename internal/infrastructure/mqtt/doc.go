// Package mqtt provides MQTT client connectivity for the BTHome bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Context-aware publishing with a bounded number of in-flight messages
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Connections
//
// The bridge opens one connection for its own housekeeping (health, status,
// subscriptions) and one connection per Homie device, because Homie relies on
// a per-device last will to publish $state=lost:
//
//	bridge  → graylogic/status/bthome-bridge (LWT: offline JSON)
//	device  → homie/sensor-1/$state          (LWT: lost)
//
// *Client satisfies homie.Bus, so a device connection is passed straight to
// the homie registry.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("zigbee2mqtt/bridge/devices", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	device, err := mqtt.Connect(cfg.MQTT,
//	    mqtt.WithClientID("bthome-sensor-1"),
//	    mqtt.WithWill("homie/sensor-1/$state", []byte("lost"), 1, true),
//	    mqtt.WithoutStatus())
//	err = device.Publish(ctx, "homie/sensor-1/$state", []byte("ready"), 1, true)
//
// # Security Considerations
//
//   - TLS should be enabled for brokers outside the host (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
package mqtt
