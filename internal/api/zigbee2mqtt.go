package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-bthome/internal/bridges/zigbee2mqtt"
)

// Zigbee2MQTTSource lists the last zigbee2mqtt device list. Implemented by
// *zigbee2mqtt.Bridge.
type Zigbee2MQTTSource interface {
	Listing() []zigbee2mqtt.ListedDevice
}

// Zigbee2MQTTDeviceResponse is one zigbee2mqtt device list entry. Rejected
// entries carry only the index and the error.
type Zigbee2MQTTDeviceResponse struct {
	Index        int      `json:"index"`
	IEEEAddress  string   `json:"ieee_address,omitempty"`
	FriendlyName string   `json:"friendly_name,omitempty"`
	ModelID      string   `json:"model_id,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Type         string   `json:"type,omitempty"`
	HomieID      string   `json:"homie_id,omitempty"`
	Skipped      []string `json:"skipped,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// handleListZigbee2MQTTDevices returns the device list in list order with the
// reason each unpublished entry was left out.
func (s *Server) handleListZigbee2MQTTDevices(w http.ResponseWriter, _ *http.Request) {
	if s.zigbee2mqtt == nil {
		writeUnavailable(w, "zigbee2mqtt bridge is disabled")
		return
	}
	listing := s.zigbee2mqtt.Listing()
	resp := make([]Zigbee2MQTTDeviceResponse, 0, len(listing))
	invalid := 0
	for _, d := range listing {
		if d.Error != "" {
			invalid++
		}
		resp = append(resp, Zigbee2MQTTDeviceResponse{
			Index:        d.Index,
			IEEEAddress:  d.IEEEAddress,
			FriendlyName: d.FriendlyName,
			ModelID:      d.ModelID,
			Manufacturer: d.Manufacturer,
			Type:         string(d.Type),
			HomieID:      d.HomieID,
			Skipped:      d.Skipped,
			Error:        d.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": resp,
		"count":   len(resp),
		"invalid": invalid,
	})
}
