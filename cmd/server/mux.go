package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"

	"harvestcraft.ai/internal/sim/world"
	"harvestcraft.ai/internal/transport/ws"
)

func buildMux(sess *world.Session, wsSrv *ws.Server, save func(), logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, sess.ID(), sess.Metrics())
	})

	if envBool("HC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string        `json:"world_id"`
				Seed    int64         `json:"seed"`
				Viewers []string      `json:"viewers"`
				Metrics world.Metrics `json:"metrics"`
			}{
				WorldID: sess.ID(),
				Seed:    sess.Seed(),
				Viewers: sess.ViewerIDs(),
				Metrics: sess.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			save()
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
		})
	} else {
		logger.Printf("admin endpoints disabled (HC_ENABLE_ADMIN_HTTP=false)")
	}

	if envBool("HC_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/v1/sample", wsSrv.SampleHandler())
	return mux
}

// writeMetrics emits the minimal Prometheus exposition format.
func writeMetrics(rw http.ResponseWriter, worldID string, m world.Metrics) {
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %d\n", name, worldID, v)
	}
	counter := func(name, help string, v int64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %d\n", name, worldID, v)
	}
	gauge("harvestcraft_viewers", "Connected viewers.", int64(m.Viewers))
	gauge("harvestcraft_active_chunks", "Chunks held in viewer windows.", int64(m.ActiveChunks))
	gauge("harvestcraft_resident_overlays", "Overlay records held in memory.", int64(m.ResidentOverlays))
	counter("harvestcraft_chunks_generated_total", "Chunks generated.", m.ChunksGenerated)
	counter("harvestcraft_actions_total", "Viewer actions attempted.", m.Actions)
	counter("harvestcraft_actions_rejected_total", "Viewer actions rejected.", m.ActionsRejected)
}
