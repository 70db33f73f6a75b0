package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/callwatch/internal/logger"
	"github.com/sjawhar/callwatch/internal/session"
)

// ControlHooks connect the HTTP surface to the running controller.
type ControlHooks struct {
	Snapshot func() session.Snapshot
	Submit   func(ctx context.Context, ev session.Event) error
	Warnings func() []string

	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

func Handler(staticFS fs.FS, hub *Hub, store CallStore, controls ControlHooks) (http.Handler, error) {
	if store == nil {
		return nil, errors.New("call store is required")
	}
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, controls)
	registerAPIRoutes(mux, store, controls)
	if controls.Metrics != nil {
		mux.Handle("GET /metrics", controls.Metrics)
	}

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(staticFS, fileServer))

	return mux, nil
}

// Serve runs the dashboard until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           withRequestLog(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Infof("web UI at http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withRequestLog(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket upgrade needs the original writer.
		if r.URL.Path == "/ws" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithRequest(r).WithFields(logrus.Fields{
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("request handled")
	})
}

func serveSPA(staticFS fs.FS, fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" {
			r.URL.Path = "/"
		} else if !strings.Contains(cleanPath, ".") {
			// Client-side routes get the app shell.
			http.ServeFileFS(w, r, staticFS, "index.html")
			return
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
