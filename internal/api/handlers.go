package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"ghost-loop/internal/input"
	"ghost-loop/internal/trail"
)

// maxBodyBytes caps request bodies; poses and commands are tiny
const maxBodyBytes = 16 << 10

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetHUD(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"phase":     snap.Phase,
		"room":      snap.Room,
		"hud":       snap.HUD,
		"endReason": snap.EndReason,
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"engine":   h.engine.Stats(),
		"input":    h.inputs.Stats(),
		"eventLog": h.engine.GetEventLogStats(),
	})
}

func (h *routerHandlers) handleGetRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Rooms())
}

func (h *routerHandlers) handleGetFrames(w http.ResponseWriter, r *http.Request) {
	samples := h.engine.FrameSamples()
	if samples == nil {
		writeError(w, "No recording yet", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"count":  len(samples),
		"frames": samples,
	})
}

func (h *routerHandlers) handleGetTrail(w http.ResponseWriter, r *http.Request) {
	samples := h.engine.FrameSamples()
	if samples == nil {
		writeError(w, "No recording yet", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := trail.WritePNG(&buf, samples, trail.DefaultConfig()); err != nil {
		log.Error().Err(err).Msg("❌ trail render failed")
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// enqueue returns a handler that decodes an input.Request (the body may be
// empty for commands without fields), forces its type and queues it.
func (h *routerHandlers) enqueue(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req input.Request
		err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, "Invalid request", http.StatusBadRequest)
			return
		}
		req.Type = kind

		cmd, err := req.Command(GetClientIP(r))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !h.inputs.Enqueue(cmd) {
			RecordInputDropped()
			writeError(w, "Input dropped", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accepted": true,
			"command":  cmd.Kind.String(),
		})
	}
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
