package mqtt

import "fmt"

// TopicPrefix is the root of the bridge's own operational topics. Homie
// device topics live under their own base topic instead.
const TopicPrefix = "graylogic"

// Topics provides builders for the bridge's operational topics.
//
//	topics := mqtt.Topics{}
//	healthTopic := topics.BridgeHealth("bthome")
//	// Returns: "graylogic/health/bthome"
type Topics struct{}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/bthome
func (Topics) BridgeHealth(bridge string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridge)
}

// BridgeStatus returns the connection status topic of one MQTT client.
//
// Example: graylogic/status/bthome-bridge
func (Topics) BridgeStatus(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, clientID)
}

// AllBridgeHealth returns a wildcard pattern for all bridge health topics.
//
// Pattern: graylogic/health/+
func (Topics) AllBridgeHealth() string {
	return TopicPrefix + "/health/+"
}

// AllBridgeStatus returns a wildcard pattern for all client status topics.
//
// Pattern: graylogic/status/+
func (Topics) AllBridgeStatus() string {
	return TopicPrefix + "/status/+"
}
