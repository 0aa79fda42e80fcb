// Package api implements the read-only HTTP API and WebSocket stream of the
// bridge.
//
// This package provides:
//   - REST endpoints listing the Homie devices the bridge publishes
//   - The inspector's topic tree, as a snapshot and as a live WebSocket feed
//   - Bridge health and the Prometheus exposition
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Routes
//
//	GET /api/v1/health          bridge and MQTT status
//	GET /api/v1/system          runtime statistics
//	GET /api/v1/devices         every registered device
//	GET /api/v1/devices/{id}    one device with nodes and properties
//	GET /api/v1/zigbee2mqtt/devices  last zigbee2mqtt device list with rejections
//	GET /api/v1/topics          inspector snapshot, ?prefix= narrows it
//	GET /api/v1/ws              live topic updates
//	GET /metrics                Prometheus metrics
//	GET /panel/                 topic browser (GET / redirects here)
//
// # WebSocket
//
// Clients subscribe with MQTT topic filters:
//
//	{"type":"subscribe","id":"1","payload":{"channels":["homie/+/sensors/#"]}}
//
// Every matching topic update arrives as an event whose event_type is
// "topic.updated" and whose payload is the inspector value.
//
// Nothing in this package publishes to MQTT.
package api
