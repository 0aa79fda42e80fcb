package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-bthome/internal/inspector"
)

// handleListTopics returns the inspector snapshot. The optional prefix
// query parameter limits it to one subtree.
func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	if s.topics == nil {
		writeUnavailable(w, "inspector is disabled")
		return
	}
	values := s.topics.Snapshot(r.URL.Query().Get("prefix"))
	if values == nil {
		values = []inspector.Value{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topics": values,
		"count":  len(values),
	})
}
