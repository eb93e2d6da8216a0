package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gsimoes/portsim/simulator"
)

var indexTemplate *template.Template

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client message types
type ClientMessage struct {
	Type   string               `json:"type"`
	Config *simulator.SimConfig `json:"config,omitempty"`
}

// PortState is the dashboard's view of the store, sent alongside metrics
type PortState struct {
	Berths []*simulator.Berth   `json:"berths"`
	Stats  *simulator.PortStats `json:"stats"`
	Now    time.Time            `json:"now"`
}

// Server message types
type ServerMessage struct {
	Type    string               `json:"type"`
	Running *bool                `json:"running,omitempty"`
	Config  *simulator.SimConfig `json:"config,omitempty"`
	Metrics *simulator.Metrics   `json:"metrics,omitempty"`
	State   *PortState           `json:"state,omitempty"`
}

// simState manages the engine, its in-memory store and UI pacing
type simState struct {
	engine  *simulator.Engine
	store   *simulator.MemStore
	running bool
	paused  bool
	mu      sync.Mutex
	stopCh  chan struct{}
}

func newSimState(config simulator.SimConfig) (*simState, error) {
	s := &simState{stopCh: make(chan struct{})}
	if err := s.rebuild(config); err != nil {
		return nil, err
	}
	return s, nil
}

// rebuild replaces the engine and store. Caller must hold the mutex
// except during construction.
func (s *simState) rebuild(config simulator.SimConfig) error {
	store := simulator.NewMemStore()
	engine, err := simulator.NewEngine(config, store, nil)
	if err != nil {
		return err
	}
	if err := engine.Bootstrap(context.Background()); err != nil {
		return err
	}
	s.engine = engine
	s.store = store
	return nil
}

// start begins the simulation (sets running flag)
func (s *simState) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.paused = false
}

// pause pauses the simulation
func (s *simState) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// reset discards all port state and rebuilds with the current config
func (s *simState) reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	config := s.engine.Config()
	if err := s.rebuild(config); err != nil {
		return err
	}
	s.running = false
	s.paused = false
	return nil
}

// updateConfig rebuilds the port with a new configuration. Berth count
// and seed are bootstrap-time parameters, so a config change restarts
// the simulation rather than patching it in place.
func (s *simState) updateConfig(config simulator.SimConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := config.Validate(); err != nil {
		return err
	}
	if err := s.rebuild(config); err != nil {
		return err
	}
	s.running = false
	s.paused = false
	return nil
}

// isRunning returns true if simulation is running and not paused
func (s *simState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && !s.paused
}

// getConfig returns the current engine configuration
func (s *simState) getConfig() simulator.SimConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Config()
}

// step advances the simulation by one tick (called by UI ticker)
func (s *simState) step(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && !s.paused {
		s.engine.Tick(ctx)
	}
}

// metrics returns current metrics
func (s *simState) metrics() *simulator.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Metrics()
}

// state returns the dashboard view of the port
func (s *simState) state(ctx context.Context) (*PortState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &PortState{
		Berths: s.store.Berths(),
		Stats:  stats,
		Now:    s.engine.Now(),
	}, nil
}

// stop signals the UI loop to stop
func (s *simState) stop() {
	close(s.stopCh)
}

// uiUpdateLoop periodically ticks the engine and sends updates to the
// client. This runs in its own goroutine and controls UI pacing: one
// engine tick (TickSeconds of virtual time) per wall-clock interval.
func uiUpdateLoop(conn *safeConn, state *simState) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-state.stopCh:
			log.Println("UI update loop stopping")
			return

		case <-ticker.C:
			if state.isRunning() {
				state.step(ctx)

				metrics := state.metrics()
				metricsMsg := ServerMessage{
					Type:    "metrics",
					Metrics: metrics,
				}
				if err := conn.WriteJSON(metricsMsg); err != nil {
					log.Printf("Error sending metrics: %v", err)
					return
				}

				portState, err := state.state(ctx)
				if err != nil {
					log.Printf("Error reading port state: %v", err)
					continue
				}
				updatePrometheusMetrics(metrics, portState)
				stateMsg := ServerMessage{
					Type:  "state",
					State: portState,
				}
				if err := conn.WriteJSON(stateMsg); err != nil {
					log.Printf("Error sending state: %v", err)
					return
				}
			}
		}
	}
}

// safeConn wraps a WebSocket connection with a mutex to prevent concurrent writes
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		return
	}
	defer conn.Close()

	// Wrap connection with mutex for safe concurrent writes
	safeConn := &safeConn{Conn: conn}

	log.Println("Client connected")

	config := simulator.DefaultConfig()
	state, err := newSimState(config)
	if err != nil {
		log.Printf("Error creating simulation: %v", err)
		return
	}

	// Send initial status
	running := false
	statusMsg := ServerMessage{
		Type:    "status",
		Running: &running,
		Config:  &config,
	}
	if err := safeConn.WriteJSON(statusMsg); err != nil {
		log.Printf("Error sending status: %v", err)
		return
	}

	// Start UI update loop
	go uiUpdateLoop(safeConn, state)

	// Handle messages from client
	for {
		var msg ClientMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		log.Printf("Received command: %s", msg.Type)

		switch msg.Type {
		case "start":
			state.start()
			log.Println("Simulation started")
			running := true
			cfg := state.getConfig()
			statusMsg := ServerMessage{
				Type:    "status",
				Running: &running,
				Config:  &cfg,
			}
			safeConn.WriteJSON(statusMsg)

		case "pause":
			state.pause()
			log.Println("Simulation paused")
			running := false
			cfg := state.getConfig()
			statusMsg := ServerMessage{
				Type:    "status",
				Running: &running,
				Config:  &cfg,
			}
			safeConn.WriteJSON(statusMsg)

		case "reset":
			if err := state.reset(); err != nil {
				log.Printf("Error resetting simulation: %v", err)
				break
			}
			log.Println("Simulation reset")
			running := false
			cfg := state.getConfig()
			statusMsg := ServerMessage{
				Type:    "status",
				Running: &running,
				Config:  &cfg,
			}
			safeConn.WriteJSON(statusMsg)

		case "config_update":
			if msg.Config != nil {
				if err := state.updateConfig(*msg.Config); err != nil {
					log.Printf("Error updating config: %v", err)
				} else {
					log.Printf("Config updated: %+v", msg.Config)
					running := state.isRunning()
					statusMsg := ServerMessage{
						Type:    "status",
						Running: &running,
						Config:  msg.Config,
					}
					safeConn.WriteJSON(statusMsg)
				}
			}
		}
	}

	// Clean up
	state.stop()
	log.Println("Client disconnected")
}

func serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		log.Printf("Error executing template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func quitHandler(w http.ResponseWriter, r *http.Request) {
	log.Println("Shutdown requested via /quitquitquit")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Server shutting down...")

	go func() {
		time.Sleep(100 * time.Millisecond)
		log.Println("Server stopped")
		os.Exit(0)
	}()
}

func main() {
	// Load templates
	templatePath := filepath.Join("templates", "index.html")
	var err error
	indexTemplate, err = template.ParseFiles(templatePath)
	if err != nil {
		log.Fatalf("Error loading template: %v", err)
	}
	log.Printf("Loaded template: %s", templatePath)

	initPrometheusMetrics()

	http.HandleFunc("/", serveHome)
	http.HandleFunc("/ws", handleWebSocket)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/quitquitquit", quitHandler)

	addr := ":8080"
	log.Printf("Server starting on http://localhost%s", addr)
	log.Printf("WebSocket endpoint: ws://localhost%s/ws", addr)
	log.Printf("Prometheus endpoint: http://localhost%s/metrics", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
