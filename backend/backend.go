// Package backend serves the published frames over HTTP.
//
// The last frame supports conditional requests: the validator is derived
// from the size and modification time of the file, and clients are told to
// revalidate on every request since the frame is replaced in place. Handlers
// only ever open the published files for reading; they rely on the atomic
// replace of the capture loop and take no locks.
package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brutella/hc/log"

	"github.com/johnpoole/glencoe-curling-camera-capture/watch"
)

// Options configures the backend.
type Options struct {
	Addr        string
	LastFile    string
	DisplayFile string
	// History is optional.
	History *History
	// Trigger is called by POST /capture. Optional.
	Trigger func()
	// WatchInterval is how often the last frame is polled for websocket
	// notifications.
	WatchInterval time.Duration
}

type Backend struct {
	inetAddr    string
	lastFile    string
	displayFile string
	history     *History
	trigger     func()
	hub         *hub
	watcher     *watch.Watcher
	srv         *http.Server
	watchCtx    context.Context
	stopWatch   context.CancelFunc
}

func InitBackend(opts Options) *Backend {
	b := &Backend{
		inetAddr:    opts.Addr,
		lastFile:    opts.LastFile,
		displayFile: opts.DisplayFile,
		history:     opts.History,
		trigger:     opts.Trigger,
		hub:         newHub(),
		watcher:     watch.New(opts.LastFile, opts.WatchInterval),
	}
	b.watchCtx, b.stopWatch = context.WithCancel(context.Background())
	b.srv = &http.Server{
		Addr:              b.inetAddr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return b
}

// Handler returns the routes of the web service.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", b.getHome)
	mux.HandleFunc("GET /last.jpg", b.getLast)
	mux.HandleFunc("GET /hdmi.jpg", b.getDisplay)
	mux.HandleFunc("GET /history", b.getHistory)
	mux.HandleFunc("GET /history/{id}", b.getHistoryPhoto)
	mux.HandleFunc("GET /healthz", b.getHealth)
	mux.HandleFunc("POST /capture", b.postCapture)
	mux.HandleFunc("GET /ws", b.hub.subscribeHandler)
	return mux
}

// Listen binds the configured address. Failing to bind is fatal for the
// caller, so it is done before anything is served.
func (b *Backend) Listen() (net.Listener, error) {
	return net.Listen("tcp", b.inetAddr)
}

// StartWebService serves on ln until StopWebService is called. It returns
// nil after a graceful stop.
func (b *Backend) StartWebService(ln net.Listener) error {
	go func() {
		if err := b.watcher.Run(b.watchCtx, b.hub.frameChanged); err != nil {
			log.Info.Println("WebService: watch:", err)
		}
	}()

	log.Info.Println("Backend is listening at " + ln.Addr().String())
	err := b.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// StopWebService stops accepting requests and waits for active ones until
// ctx is done.
func (b *Backend) StopWebService(ctx context.Context) error {
	b.stopWatch()
	return b.srv.Shutdown(ctx)
}

func (b *Backend) getHistory(w http.ResponseWriter, r *http.Request) {
	log.Debug.Println("WebService: getHistory requested")
	if b.history == nil {
		http.Error(w, "History disabled", http.StatusNotFound)
		return
	}

	n := DefaultMaxEntries
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			n = l
		}
	}

	js, err := b.history.getJSON(n)
	if err != nil {
		log.Info.Println("WebService:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}

func (b *Backend) getHistoryPhoto(w http.ResponseWriter, r *http.Request) {
	if b.history == nil {
		http.NotFound(w, r)
		return
	}

	var id int64
	if _, err := fmt.Sscanf(r.PathValue("id"), "%d.jpg", &id); err != nil {
		http.NotFound(w, r)
		return
	}

	photo, err := b.history.Photo(id)
	if err == sql.ErrNoRows {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Info.Println("WebService:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// history entries never change
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "max-age=86400, immutable")
	w.Write(photo)
}

func (b *Backend) getHealth(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Published   bool   `json:"published"`
		LastChanged string `json:"last_changed,omitempty"`
		Subscribers int    `json:"subscribers"`
	}{Subscribers: b.hub.count()}

	if fi, err := os.Stat(b.lastFile); err == nil {
		status.Published = true
		status.LastChanged = fi.ModTime().UTC().Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (b *Backend) postCapture(w http.ResponseWriter, r *http.Request) {
	if b.trigger == nil {
		http.Error(w, "Trigger disabled", http.StatusNotFound)
		return
	}
	log.Info.Println("WebService: capture requested by", r.RemoteAddr)
	b.trigger()
	w.WriteHeader(http.StatusAccepted)
}
