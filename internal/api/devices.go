package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-bthome/internal/homie"
)

// DeviceResponse is the JSON view of a Homie device.
type DeviceResponse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	State string         `json:"state"`
	Nodes []NodeResponse `json:"nodes"`
}

// NodeResponse is the JSON view of a node.
type NodeResponse struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Type       string             `json:"type"`
	Properties []PropertyResponse `json:"properties"`
}

// PropertyResponse is the JSON view of a property.
type PropertyResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
	Settable bool   `json:"settable"`
	Retained bool   `json:"retained"`
	Unit     string `json:"unit,omitempty"`
	Format   string `json:"format,omitempty"`
}

func toDeviceResponse(d homie.DeviceDescriptor) DeviceResponse {
	resp := DeviceResponse{
		ID:    d.ID,
		Name:  d.Name,
		State: string(d.State),
		Nodes: make([]NodeResponse, 0, len(d.Nodes)),
	}
	for _, n := range d.Nodes {
		node := NodeResponse{
			ID:         n.ID,
			Name:       n.Name,
			Type:       n.Type,
			Properties: make([]PropertyResponse, 0, len(n.Properties)),
		}
		for _, p := range n.Properties {
			prop := PropertyResponse{
				ID:       p.ID,
				Name:     p.Name,
				Datatype: string(p.Datatype),
				Settable: p.Settable,
				Retained: p.Retained,
				Unit:     string(p.Unit),
			}
			if p.Format != nil {
				prop.Format = homie.EncodeFormat(p.Format)
			}
			node.Properties = append(node.Properties, prop)
		}
		resp.Nodes = append(resp.Nodes, node)
	}
	return resp
}

// handleListDevices returns every registered device, sorted by id.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.devices.Devices()
	resp := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, toDeviceResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": resp,
		"count":   len(resp),
	})
}

// handleGetDevice returns one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, ok := s.devices.Device(id)
	if !ok {
		writeNotFound(w, "device not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(d.Snapshot()))
}
