// Package inspector keeps the last value of every MQTT topic in a tree.
//
// The tree is keyed by topic level, so a snapshot walks it in topic order:
//
//	homie
//	└── bthome-a4c138000001
//	    ├── $state = ready
//	    └── sensors
//	        └── temperature = 21.3
//
// Payloads are classified on arrival as JSON, UTF-8 text or raw bytes. An
// empty retained payload clears the topic, as it does on the broker.
//
// The inspector is read-only. It never publishes.
package inspector
