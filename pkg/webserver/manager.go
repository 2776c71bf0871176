// Package webserver exposes the live fuel metrics over HTTP: JSON
// snapshots on demand and a websocket push stream fed from the fuel
// pubsub topic.
package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/pkg/caster"
	"github.com/berarma/TinyPedal/pkg/fuel"
	"github.com/berarma/TinyPedal/pkg/pubsub"
	"github.com/berarma/TinyPedal/pkg/stats"
)

var upgrader = websocket.Upgrader{} // use default options

// clientBuffer bounds the per-client send queue; slow readers drop
// frames instead of stalling the broadcast.
const clientBuffer = 8

// StatsReader exposes the latest driver record; satisfied by the
// stats module.
type StatsReader interface {
	Current() stats.DriverStats
}

type Manager struct {
	addr     string
	r        *mux.Router
	metrics  *fuel.Metrics
	stats    StatsReader
	ps       *pubsub.PubSub[fuel.Info]
	infoChan <-chan fuel.Info
	caster   caster.ChannelCaster[fuel.Info]
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[chan string]struct{}
}

// NewManager wires the routes and starts the broadcast pump. stats
// may be nil.
func NewManager(
	addr string,
	metrics *fuel.Metrics,
	ps *pubsub.PubSub[fuel.Info],
	stats StatsReader,
	logger *zap.Logger,
) *Manager {
	m := &Manager{
		addr:    addr,
		r:       mux.NewRouter(),
		metrics: metrics,
		stats:   stats,
		ps:      ps,
		caster:  caster.JSONChannelCaster[fuel.Info]{},
		logger:  logger,
		clients: make(map[chan string]struct{}),
	}

	m.r.HandleFunc("/fuel", m.handleFuel).Methods(http.MethodGet)
	m.r.HandleFunc("/stats", m.handleStats).Methods(http.MethodGet)
	m.r.HandleFunc("/ws/fuel", m.handleFuelSocket)

	m.infoChan = ps.Subscribe(fuel.PubSubFuelTopic)
	go m.broadcast(m.infoChan)

	return m
}

func (m *Manager) handleFuel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.metrics.Fuel()); err != nil {
		m.logger.Error("fuel snapshot not encoded", zap.Error(err))
	}
}

func (m *Manager) handleStats(w http.ResponseWriter, r *http.Request) {
	if m.stats == nil {
		http.Error(w, "stats disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.stats.Current()); err != nil {
		m.logger.Error("driver stats not encoded", zap.Error(err))
	}
}

func (m *Manager) handleFuelSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := m.addClient()
	defer m.removeClient(ch)

	// drain control frames and detect the peer closing
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				m.removeClient(ch)
				return
			}
		}
	}()

	for payload := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			return
		}
	}
}

func (m *Manager) addClient() chan string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan string, clientBuffer)
	m.clients[ch] = struct{}{}
	return ch
}

func (m *Manager) removeClient(ch chan string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[ch]; ok {
		delete(m.clients, ch)
		close(ch)
	}
}

// broadcast pumps published snapshots to every connected client,
// dropping frames for clients that cannot keep up.
func (m *Manager) broadcast(infoChan <-chan fuel.Info) {
	for info := range infoChan {
		payload, err := m.caster.To(info)
		if err != nil {
			m.logger.Error("fuel snapshot not cast", zap.Error(err))
			continue
		}
		m.mu.Lock()
		for ch := range m.clients {
			select {
			case ch <- payload:
			default:
			}
		}
		m.mu.Unlock()
	}
}

// Serve blocks until ctx is cancelled, then shuts the server down
// gracefully. Unsubscribing closes the snapshot channel, which ends
// the broadcast pump started in NewManager.
func (m *Manager) Serve(ctx context.Context) error {
	defer m.ps.Unsubscribe(fuel.PubSubFuelTopic, m.infoChan)

	srv := &http.Server{
		Addr: m.addr,
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      m.r,
	}

	errChan := make(chan error, 1)
	go func() {
		m.logger.Info("webserver listening", zap.String("addr", m.addr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.logger.Info("webserver shutting down")
	return srv.Shutdown(shutdownCtx)
}
