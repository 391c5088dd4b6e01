package diagnostics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHubPublishUpdatesStats(t *testing.T) {
	h := NewHub()
	stop := make(chan struct{})
	defer close(stop)
	go h.Run(stop)

	h.Publish("frame_sent", map[string]interface{}{"bytes": 12})
	h.Publish("frame_sent", map[string]interface{}{"bytes": 8})
	h.Publish("rpc_dispatched", map[string]interface{}{"methodID": 3})

	// Let the hub's goroutine drain the broadcast channel.
	require.Eventually(t, func() bool {
		h.statsMu.Lock()
		defer h.statsMu.Unlock()
		return h.counts["frame_sent"] == 2 && h.counts["rpc_dispatched"] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStatsEndpointReturnsJSON(t *testing.T) {
	h := NewHub()
	stop := make(chan struct{})
	defer close(stop)
	go h.Run(stop)

	h.Publish("attach", map[string]interface{}{"dest": "d1"})
	require.Eventually(t, func() bool {
		h.statsMu.Lock()
		defer h.statsMu.Unlock()
		return h.counts["attach"] == 1
	}, time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body, "event_counts")
}
