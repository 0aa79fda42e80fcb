package influxdb

import "errors"

var (
	// ErrNotConnected is returned by HealthCheck once the client is closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps the ping error of Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)
