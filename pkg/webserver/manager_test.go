package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/pkg/fuel"
	"github.com/berarma/TinyPedal/pkg/pubsub"
)

func newTestManager(t *testing.T) (*Manager, *fuel.Metrics, *pubsub.PubSub[fuel.Info]) {
	t.Helper()
	metrics := fuel.NewMetrics()
	ps := pubsub.NewPubSub[fuel.Info]()
	return NewManager(":0", metrics, ps, nil, zap.NewNop()), metrics, ps
}

func TestFuelEndpointServesSnapshot(t *testing.T) {
	m, metrics, _ := newTestManager(t)
	metrics.Publish(fuel.Info{TankCapacity: 60, AmountCurrent: 47.2, EstimatedLaps: 17.2})

	rec := httptest.NewRecorder()
	m.r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fuel", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var info fuel.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, 60.0, info.TankCapacity)
	assert.Equal(t, 47.2, info.AmountCurrent)
	assert.Equal(t, 17.2, info.EstimatedLaps)
}

func TestStatsEndpointDisabled(t *testing.T) {
	m, _, _ := newTestManager(t)

	rec := httptest.NewRecorder()
	m.r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBroadcastReachesClients(t *testing.T) {
	m, _, ps := newTestManager(t)

	ch := m.addClient()
	defer m.removeClient(ch)

	ps.Publish(fuel.PubSubFuelTopic, fuel.Info{EstimatedLaps: 5.5})

	select {
	case payload := <-ch:
		var info fuel.Info
		require.NoError(t, json.Unmarshal([]byte(payload), &info))
		assert.Equal(t, 5.5, info.EstimatedLaps)
	case <-time.After(time.Second):
		t.Fatal("no payload broadcast")
	}
}

func TestBroadcastDropsFramesForSlowClients(t *testing.T) {
	m, _, ps := newTestManager(t)

	ch := m.addClient()
	defer m.removeClient(ch)

	// Publish past the buffer without draining; must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*3; i++ {
			ps.Publish(fuel.PubSubFuelTopic, fuel.Info{EstimatedLaps: float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Len(t, ch, clientBuffer)
}

func TestServeShutdownStopsBroadcast(t *testing.T) {
	m, _, ps := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Serve(ctx)
	}()
	cancel()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server never shut down")
	}

	// The pump unsubscribed on shutdown, so publishing finds no
	// subscribers and connected clients see nothing.
	ch := m.addClient()
	defer m.removeClient(ch)
	ps.Publish(fuel.PubSubFuelTopic, fuel.Info{EstimatedLaps: 5.5})
	assert.Empty(t, ch)
}
