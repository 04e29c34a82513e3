package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/audio_receiver/pkg/receiver"
)

// fakeReceiver имитирует источник снапшотов для status API
type fakeReceiver struct {
	running bool
	stats   receiver.StatsSnapshot
	state   receiver.ConnectionState
}

func (f *fakeReceiver) Running() bool                             { return f.running }
func (f *fakeReceiver) Stats() receiver.StatsSnapshot             { return f.stats }
func (f *fakeReceiver) ConnectionState() receiver.ConnectionState { return f.state }

func newTestServer(info ReceiverInfo) *Server {
	return NewServer(Config{
		ListenAddr: ":0",
		Device:     "default",
		RTPPort:    5004,
	}, info, prometheus.NewRegistry(), nil)
}

func TestServer_Status(t *testing.T) {
	info := &fakeReceiver{
		running: true,
		stats: receiver.StatsSnapshot{
			PacketsReceived: 1234,
			BytesReceived:   210000,
			Errors:          7,
			LastSequence:    999,
			LastPacketTime:  time.Now().Unix(),
			Connected:       true,
			LastSender:      "192.168.1.20",
		},
		state: receiver.StateGood,
	}

	rec := httptest.NewRecorder()
	newTestServer(info).Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, ServiceVersion, body["version"])
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "GOOD", body["connection_status"])
	assert.NotZero(t, body["timestamp"])

	audio, ok := body["audio"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "default", audio["device"])
	assert.Equal(t, float64(5004), audio["port"])
	assert.Equal(t, true, audio["running"])

	stats, ok := body["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1234), stats["packets_received"])
	assert.Equal(t, float64(7), stats["errors"])
	assert.Equal(t, float64(999), stats["last_sequence"])
	assert.Equal(t, "192.168.1.20", stats["last_sender"])
}

func TestServer_StatusStopped(t *testing.T) {
	info := &fakeReceiver{
		running: false,
		stats:   receiver.StatsSnapshot{LastSequence: -1},
		state:   receiver.StateStopped,
	}

	rec := httptest.NewRecorder()
	newTestServer(info).Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/status", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "stopped", body["status"])
	assert.Equal(t, "STOPPED", body["connection_status"])

	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(-1), stats["last_sequence"])
}

func TestServer_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeReceiver{}).Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.NotZero(t, body.Timestamp)
}

func TestServer_UnknownPathNotFound(t *testing.T) {
	for _, path := range []string{"/", "/unknown", "/status/extra"} {
		rec := httptest.NewRecorder()
		newTestServer(&fakeReceiver{}).Handler().ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "путь %s", path)
	}
}

func TestServer_MetricsMounted(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeReceiver{}).Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_StartStop(t *testing.T) {
	s := newTestServer(&fakeReceiver{})
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
