package httpapi

import (
	"net/http"
	"time"
)

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "bot is alive"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "store is unavailable"})
		return
	}
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	if r.deps.Heartbeat != nil {
		if snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter); !snapshot.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "components degraded", "overall": snapshot.Overall})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter)
	writeJSON(w, http.StatusOK, snapshot)
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	moderation := map[string]any{
		"rate_window_seconds": r.deps.Config.RateWindowSec,
		"rate_threshold":      r.deps.Config.RateThreshold,
		"mute_tiers":          r.deps.Config.MuteTiers,
		"reset_policy":        r.deps.Config.ResetPolicy,
	}
	bufferSize := r.deps.Config.BufferSize
	if r.deps.Engine != nil {
		limits := r.deps.Engine.Limits()
		moderation["rate_window_seconds"] = int(limits.RateWindow / time.Second)
		bufferSize = limits.BufferCapacity
	}
	payload := map[string]any{
		"name":        "room-companion",
		"environment": r.deps.Config.Environment,
		"llm": map[string]any{
			"provider": r.deps.Config.LLMProvider,
			"model":    r.deps.Config.LLMModel,
		},
		"moderation":  moderation,
		"buffer_size": bufferSize,
	}
	writeJSON(w, http.StatusOK, payload)
}
