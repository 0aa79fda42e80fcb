package inspector

import "errors"

var (
	// ErrTreeFull is returned by Insert when a new topic would exceed the
	// configured topic limit. Existing topics keep updating.
	ErrTreeFull = errors.New("inspector: topic limit reached")

	// ErrNoSubscriber is returned by New when no MQTT subscriber is supplied.
	ErrNoSubscriber = errors.New("inspector: subscriber is required")
)
