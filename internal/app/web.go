package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_sensors/internal/stream"
)

// StreamInfo is one entry of GET /api/streams.
type StreamInfo struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	HardwareType int    `json:"hardware_type"`
	State        string `json:"state"`
	IntervalUs   int    `json:"interval_us"`
}

// IntervalRequest is the body of POST /api/interval.
type IntervalRequest struct {
	Sensor   string `json:"sensor"`
	Interval any    `json:"interval"`
}

const wsWriteWait = 2 * time.Second

// Web serves the registry over HTTP: a websocket per stream and a small JSON
// API for intervals and stream state.
type Web struct {
	reg      *stream.Registry
	disp     *stream.Dispatcher
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu       sync.Mutex
	sessions map[*websocket.Conn]string
	closing  bool
}

func NewWeb(reg *stream.Registry) *Web {
	w := &Web{
		reg:  reg,
		disp: stream.NewDispatcher(reg),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		sessions: make(map[*websocket.Conn]string),
	}
	w.mux.HandleFunc("GET /api/streams", w.handleStreams)
	w.mux.HandleFunc("POST /api/interval", w.handleInterval)
	w.mux.HandleFunc("GET /ws/{stream}", w.handleStream)
	return w
}

func (w *Web) Handler() http.Handler { return w.mux }

// Run serves on addr until ctx is done, then closes every open stream
// session.
func (w *Web) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: w.mux}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	w.closeSessions()
	if err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

// track registers a live session; it reports false once sessions are being
// closed.
func (w *Web) track(conn *websocket.Conn, session string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		return false
	}
	w.sessions[conn] = session
	return true
}

func (w *Web) untrack(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, conn)
}

// closeSessions sends a going-away close frame to every websocket session and
// closes it. Hijacked connections are not covered by http.Server.Shutdown.
func (w *Web) closeSessions() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closing = true
	frame := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	for conn, session := range w.sessions {
		if err := conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(wsWriteWait)); err != nil {
			log.Debugf("web: session %s close frame: %v", session, err)
		}
		conn.Close()
		log.Printf("web: session %s closed on shutdown", session)
	}
}

func (w *Web) handleStreams(rw http.ResponseWriter, _ *http.Request) {
	subs := w.reg.Subscriptions()
	out := make([]StreamInfo, 0, len(subs))
	for _, s := range subs {
		out = append(out, StreamInfo{
			ID:           s.ID(),
			Kind:         s.Kind().String(),
			HardwareType: int(s.HardwareType()),
			State:        s.State().String(),
			IntervalUs:   s.Interval(),
		})
	}
	writeJSON(rw, http.StatusOK, out)
}

func (w *Web) handleInterval(rw http.ResponseWriter, r *http.Request) {
	var req IntervalRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(rw, http.StatusBadRequest, ErrorMessage{Code: stream.CodeArgument, Message: fmt.Sprintf("bad request: %v", err)})
		return
	}

	err := w.disp.SetInterval(req.Sensor, req.Interval)
	switch {
	case err == nil:
		rw.WriteHeader(http.StatusNoContent)
	case errors.Is(err, stream.ErrArgument):
		writeJSON(rw, http.StatusBadRequest, errorMessage(req.Sensor, err))
	default:
		writeJSON(rw, http.StatusConflict, errorMessage(req.Sensor, err))
	}
}

// handleStream upgrades to a websocket and streams items until either side
// goes away. The stream is cancelled when the socket closes.
func (w *Web) handleStream(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("stream")
	sub, err := w.reg.Resolve(id)
	if err != nil {
		writeJSON(rw, http.StatusNotFound, errorMessage(id, err))
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	sink := stream.NewChanSink(sinkBuffer)
	if err := sub.Start(sink); err != nil {
		msg := errorMessage(sub.ID(), err)
		if it, ok := nextItem(sink); ok && it.Err != nil {
			msg = errorMessage(sub.ID(), it.Err)
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debugf("web: %s error write: %v", sub.ID(), err)
		}
		if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg.Code)); err != nil {
			log.Debugf("web: %s close write: %v", sub.ID(), err)
		}
		return
	}
	active := true
	defer func() {
		if active {
			sub.Stop()
		}
	}()
	if !w.track(conn, session) {
		return
	}
	defer w.untrack(conn)
	log.Printf("web: session %s listening on %s", session, sub.ID())

	// reader: only to notice the peer closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			log.Printf("web: session %s closed", session)
			return
		case <-r.Context().Done():
			return
		case it := <-sink.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if it.Err != nil {
				// the subscription already went inactive
				active = false
				if err := conn.WriteJSON(errorMessage(sub.ID(), it.Err)); err != nil {
					log.Debugf("web: session %s write: %v", session, err)
				}
				return
			}
			if err := conn.WriteJSON(VectorMessage{Stream: sub.ID(), Values: it.Vector, Time: time.Now()}); err != nil {
				log.Debugf("web: session %s write: %v", session, err)
				return
			}
		}
	}
}

func nextItem(s *stream.ChanSink) (stream.Item, bool) {
	select {
	case it := <-s.C:
		return it, true
	default:
		return stream.Item{}, false
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
