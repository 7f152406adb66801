package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tigpsd/internal/gnss"
	"tigpsd/internal/sink"
)

// Status wires the live snapshot sources into the HTTP handler.
// Either source may be nil (replay mode has no receiver service).
type Status struct {
	GNSS func() gnss.Snapshot
	Fix  func() sink.Fix
}

type statusSnapshot struct {
	Service   string         `json:"service"`
	NowUTC    string         `json:"now_utc"`
	UptimeSec int64          `json:"uptime_sec"`
	GNSS      *gnss.Snapshot `json:"gnss,omitempty"`
	Fix       *sink.Fix      `json:"fix,omitempty"`
}

var startTime = time.Now().UTC()

func snapshot(st Status, nowUTC time.Time) statusSnapshot {
	snap := statusSnapshot{
		Service:   "tigpsd",
		NowUTC:    nowUTC.Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(startTime).Seconds()),
	}
	if st.GNSS != nil {
		g := st.GNSS()
		snap.GNSS = &g
	}
	if st.Fix != nil {
		f := st.Fix()
		snap.Fix = &f
	}
	return snap
}

func Handler(st Status) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		b, err := json.MarshalIndent(snapshot(st, time.Now().UTC()), "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>tigpsd</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>tigpsd</h1>")
		_, _ = fmt.Fprintf(w, "<p>Status: <a href=\"/api/status\">/api/status</a></p>")
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, st Status) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(st),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
