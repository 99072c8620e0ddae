// File: internal/infra/web/stream.go
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/infra/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Presigned-URL clients are browsers on other origins; the stream carries
	// no credentials and job ids are unguessable.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	listenerBuffer = 32
)

// handleStream upgrades to a websocket, replays the job's buffered updates,
// then forwards live pushes until the client goes away. History snapshot and
// listener registration happen atomically, so the client sees every update
// exactly once across the replay/live boundary.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job id is required", "")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug().Str("job_id", jobID).Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// A full buffer means the client is not keeping up; the update is dropped
	// rather than blocking the publisher. The poll endpoint remains the
	// authoritative view.
	live := make(chan model.JobUpdate, listenerBuffer)
	history, handle := s.events.Attach(jobID, func(u model.JobUpdate) {
		select {
		case live <- u:
		default:
		}
	})
	defer s.events.Unsubscribe(jobID, handle)

	metrics.StreamListenerAttached()
	defer metrics.StreamListenerDetached()

	// Reader goroutine: we never expect client messages, but reading is what
	// surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, u := range history {
		if err := writeUpdate(conn, u); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case u := <-live:
			if err := writeUpdate(conn, u); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeUpdate(conn *websocket.Conn, u model.JobUpdate) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(u)
}
