package health

import (
	"time"

	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/mqtt"
)

// Status represents the operational status of a bridge.
type Status string

const (
	// StatusHealthy indicates the bridge is operating normally.
	StatusHealthy Status = "healthy"

	// StatusDegraded indicates the bridge is operating with issues.
	StatusDegraded Status = "degraded"

	// StatusStarting indicates the bridge is starting up.
	StatusStarting Status = "starting"

	// StatusStopping indicates the bridge is shutting down.
	StatusStopping Status = "stopping"
)

// Message is published retained to graylogic/health/{bridge}.
type Message struct {
	// Bridge is the bridge identifier (e.g., "bthome").
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	Status  Status `json:"status"`
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Source describes the upstream the bridge reads from (scanner or
	// zigbee2mqtt subscription).
	Source *SourceStatus `json:"source,omitempty"`

	Statistics *Statistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of registered Homie devices.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// SourceStatus reports whether the upstream is delivering.
type SourceStatus struct {
	Status string `json:"status"` // "running" or "stopped"
}

// Statistics are cumulative counters since start.
type Statistics struct {
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	Errors           uint64 `json:"errors"`
}

// Stats is the snapshot a bridge hands to the reporter.
type Stats struct {
	Running   bool   `json:"running"`
	Received  uint64 `json:"received"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
	Devices   int    `json:"devices"`
}

// NewMessage builds a health message from a stats snapshot.
func NewMessage(bridgeID, version string, status Status, stats Stats, startTime time.Time) Message {
	source := "stopped"
	if stats.Running {
		source = "running"
	}
	return Message{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		Source:         &SourceStatus{Status: source},
		DevicesManaged: stats.Devices,
		Statistics: &Statistics{
			MessagesReceived: stats.Received,
			MessagesSent:     stats.Published,
			Errors:           stats.Errors,
		},
	}
}

// Topic returns the retained health topic of a bridge.
func Topic(bridgeID string) string {
	return mqtt.Topics{}.BridgeHealth(bridgeID)
}
