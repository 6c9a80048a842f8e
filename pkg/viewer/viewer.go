// Package viewer serves feed snapshots over http and streams every change to
// websocket clients.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"flashcompare/pkg/cmpfeeds"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// Feed is the part of a feed the viewer reads and controls.
type Feed interface {
	Name() string
	Snapshot() (cmpfeeds.Snapshot, error)
	Subscribe(fn func(cmpfeeds.Snapshot)) (func(), error)
	Select(key string) error
	ClearSelection() error
	Pause() error
	Resume() error
}

// Config holds the viewer settings.
type Config struct {
	Addr    string
	Origins []string
}

// Server is the viewer http server.
type Server struct {
	cfg   Config
	feeds map[string]Feed
	order []string
	evts  *Events
	ws    websocket.Upgrader

	unsubscribe []func()
}

// New subscribes to every feed and builds the server.
func New(cfg Config, feeds ...Feed) (*Server, error) {
	s := &Server{
		cfg:   cfg,
		feeds: make(map[string]Feed, len(feeds)),
		evts:  NewEvents(),
		ws: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	for _, f := range feeds {
		name := f.Name()
		if _, exists := s.feeds[name]; exists {
			s.Close()
			return nil, fmt.Errorf("duplicate feed %q", name)
		}
		s.feeds[name] = f
		s.order = append(s.order, name)

		unsubscribe, err := f.Subscribe(s.publish)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("cannot subscribe to feed %q: %w", name, err)
		}
		s.unsubscribe = append(s.unsubscribe, unsubscribe)
	}

	return s, nil
}

func (s *Server) publish(snapshot cmpfeeds.Snapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Errorf("cannot marshal %s snapshot: %v", snapshot.Feed, err)
		return
	}
	s.evts.Send(data)
}

// Handler returns the routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := httptreemux.NewContextMux()

	mux.GET("/healthz", s.health)
	mux.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	mux.GET("/v1/feeds", s.listFeeds)
	mux.GET("/v1/feeds/:feed", s.getFeed)
	mux.POST("/v1/feeds/:feed/select/:seq", s.selectRecord)
	mux.POST("/v1/feeds/:feed/clear", s.control(Feed.ClearSelection))
	mux.POST("/v1/feeds/:feed/pause", s.control(Feed.Pause))
	mux.POST("/v1/feeds/:feed/resume", s.control(Feed.Resume))
	mux.GET("/v1/events", s.events)

	origins := s.cfg.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.ws.CheckOrigin = func(r *http.Request) bool { return originAllowed(origins, r.Header.Get("Origin")) }

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(mux)
}

func originAllowed(origins []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down the viewer")
		s.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("cannot shut down the viewer: %v", err)
		}
	}()

	log.Infof("viewer listening on %s", s.cfg.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}

// Close detaches from the feeds and disconnects websocket clients.
func (s *Server) Close() {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
	s.evts.Shutdown()
}

// Serve runs a viewer over the feeds until ctx is cancelled.
func Serve(ctx context.Context, addr string, origins []string, feeds ...*cmpfeeds.Feed) error {
	vf := make([]Feed, 0, len(feeds))
	for _, f := range feeds {
		vf = append(vf, f)
	}

	s, err := New(Config{Addr: addr, Origins: origins}, vf...)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
