package viewer

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"flashcompare/internal/pkg/metrics"
	"flashcompare/pkg/cmpfeeds"
	"flashcompare/pkg/feedbuffer"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("cannot write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, feedbuffer.ErrUnknownSequence):
		status = http.StatusNotFound
	case errors.Is(err, cmpfeeds.ErrFeedStopped):
		status = http.StatusServiceUnavailable
	}
	respond(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) (Feed, bool) {
	name := httptreemux.ContextParams(r.Context())["feed"]
	f, ok := s.feeds[name]
	if !ok {
		respond(w, http.StatusNotFound, errorResponse{Error: "unknown feed " + name})
	}
	return f, ok
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) listFeeds(w http.ResponseWriter, _ *http.Request) {
	snapshots := make([]cmpfeeds.Snapshot, 0, len(s.order))
	for _, name := range s.order {
		snapshot, err := s.feeds[name].Snapshot()
		if err != nil {
			respondError(w, err)
			return
		}
		snapshots = append(snapshots, snapshot)
	}
	respond(w, http.StatusOK, snapshots)
}

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}

	snapshot, err := f.Snapshot()
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, snapshot)
}

func (s *Server) selectRecord(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}

	seq := httptreemux.ContextParams(r.Context())["seq"]
	if err := f.Select(seq); err != nil {
		respondError(w, err)
		return
	}
	s.respondSnapshot(w, f)
}

// control wraps a feed state change into a handler.
func (s *Server) control(action func(Feed) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := s.feed(w, r)
		if !ok {
			return
		}
		if err := action(f); err != nil {
			respondError(w, err)
			return
		}
		s.respondSnapshot(w, f)
	}
}

func (s *Server) respondSnapshot(w http.ResponseWriter, f Feed) {
	snapshot, err := f.Snapshot()
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, snapshot)
}

// events streams snapshot changes to a websocket client.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	c, err := s.ws.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("cannot upgrade viewer connection: %v", err)
		return
	}
	defer c.Close()

	id := uuid.NewString()
	ch := s.evts.Acquire(id)
	defer func() {
		// Shutdown may have released the channel already.
		_ = s.evts.Release(id)
	}()

	metrics.ViewerClientConnected()
	defer metrics.ViewerClientDisconnected()

	log.Debugf("viewer client %s connected from %s", id, r.RemoteAddr)

	// initial state so clients do not wait for the next change
	for _, name := range s.order {
		snapshot, err := s.feeds[name].Snapshot()
		if err != nil {
			return
		}
		if err := c.WriteJSON(snapshot); err != nil {
			return
		}
	}

	// reads are only needed to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		case <-closed:
			log.Debugf("viewer client %s disconnected", id)
			return
		}
	}
}
