package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cjeanneret/BrickGo/internal/logic/motion"
)

// GotoRequest asks the motor to seek a target. Exactly one of angle or
// position must be set.
type GotoRequest struct {
	Angle     *int64 `json:"angle,omitempty"`
	Position  *int64 `json:"position,omitempty"`
	TimeoutMs int    `json:"timeout_ms"`
}

// RunMoveFunc performs a goal-seek with the given request.
// It is called from the POST /goto handler in a goroutine.
type RunMoveFunc func(ctx context.Context, req GotoRequest) error

// StatusFunc reports the current motor state for GET /status.
type StatusFunc func() motion.Status

// FormConfig holds default values for the goto form (from config).
type FormConfig struct {
	Epsilon          int64 `json:"epsilon"`
	OutputMultiplier int64 `json:"output_multiplier"`
	DefaultTimeoutMs int   `json:"default_timeout_ms"`
}

// ValidateGoto checks a goto request for well-formedness.
func ValidateGoto(req GotoRequest) error {
	if req.Angle == nil && req.Position == nil {
		return fmt.Errorf("either angle or position is required")
	}
	if req.Angle != nil && req.Position != nil {
		return fmt.Errorf("angle and position are mutually exclusive")
	}
	if req.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	return nil
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	RunMove      RunMoveFunc
	Status       StatusFunc
	FormDefaults FormConfig
	runningMu    sync.Mutex
	running      bool
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runMove is nil, POST /goto will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runMove RunMoveFunc, status StatusFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		RunMove:      runMove,
		Status:       status,
		FormDefaults: formDefaults,
		staticFS:     staticFS,
	}
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.FormDefaults)
}

// HandleStatus returns the current motor state as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.Status == nil {
		http.Error(w, "motor not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Status())
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleGoto handles POST /goto to start a goal-seek.
func (h *Handlers) HandleGoto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GotoRequest
	body := http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := ValidateGoto(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunMove == nil {
		http.Error(w, "motor not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "a move is already in progress", http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		ctx := context.Background()
		if err := h.RunMove(ctx, req); err != nil {
			h.Broadcaster.Broadcast("error", "Move failed: "+err.Error())
			log.Printf("move failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", "Move complete")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "seeking"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
