// Package ws bridges a host game engine to NewU over a WebSocket. The host
// streams events as JSON frames and gets one reply per frame, in order.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Visual-Illusions/NewU/internal/model"
	"github.com/Visual-Illusions/NewU/internal/respawn"
)

const (
	readLimit    = 64 * 1024
	writeTimeout = 5 * time.Second
)

// Respawns handles actor lifecycle events.
type Respawns interface {
	Moved(ctx context.Context, actor model.Actor) []model.Message
	Respawning(ctx context.Context, actor model.Actor, worldSpawn model.Pose) respawn.Outcome
	Respawned(ctx context.Context, actor model.Actor) []model.Message
	Disconnected(actorID string)
}

// Commands handles chat command lines.
type Commands interface {
	Handle(ctx context.Context, actor model.Actor, line string) ([]model.Message, bool)
}

// EventRecorder counts incoming frames.
type EventRecorder interface {
	ObserveEvent(kind string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEvent(string) {}

// Server accepts host connections.
type Server struct {
	respawns    Respawns
	commands    Commands
	recorder    EventRecorder
	idleTimeout time.Duration

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithRecorder sets the event recorder.
func WithRecorder(rec EventRecorder) Option {
	return func(s *Server) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// WithIdleTimeout sets how long a connection may stay silent.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// NewServer creates a bridge server.
func NewServer(respawns Respawns, commands Commands, opts ...Option) *Server {
	s := &Server{
		respawns:    respawns,
		commands:    commands,
		recorder:    nopRecorder{},
		idleTimeout: 2 * time.Minute,
		conns:       make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // hosts are not browsers
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler upgrades the request and serves frames until the host disconnects.
// Actors seen on a connection are forgotten when it closes.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.track(conn)
		defer s.untrack(conn)
		conn.SetReadLimit(readLimit)

		slog.Info("host connected", "remote", r.RemoteAddr)
		ctx := r.Context()
		seen := make(map[string]struct{})
		defer func() {
			for id := range seen {
				s.respawns.Disconnected(id)
			}
			slog.Info("host disconnected", "remote", r.RemoteAddr, "actors", len(seen))
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("host read ended", "remote", r.RemoteAddr, "error", err)
				}
				return
			}

			var f Frame
			reply := Reply{Type: TypeReply, Messages: []model.Message{}}
			if err := json.Unmarshal(msg, &f); err != nil {
				reply.Error = fmt.Sprintf("malformed frame: %v", err)
			} else {
				reply = s.dispatch(ctx, f)
				if f.Actor.ID != "" {
					if f.Type == TypeDisconnected {
						delete(seen, f.Actor.ID)
					} else {
						seen[f.Actor.ID] = struct{}{}
					}
				}
			}

			if err := writeJSON(conn, reply); err != nil {
				slog.Warn("host write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// Close sends a going-away close frame to every host and drops the
// connections. Handlers return once their read fails.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

var errNoActor = errors.New("frame has no actor id")

func (s *Server) dispatch(ctx context.Context, f Frame) Reply {
	reply := Reply{Seq: f.Seq, Type: TypeReply, Messages: []model.Message{}}
	s.recorder.ObserveEvent(f.Type)

	if f.Type != TypePing && f.Actor.ID == "" {
		reply.Error = errNoActor.Error()
		return reply
	}

	switch f.Type {
	case TypePing:
		reply.Handled = true
	case TypeMoved:
		reply.Messages = append(reply.Messages, s.respawns.Moved(ctx, f.Actor)...)
		reply.Handled = true
	case TypeRespawning:
		if f.WorldSpawn == nil {
			reply.Error = "respawning frame needs world_spawn"
			return reply
		}
		out := s.respawns.Respawning(ctx, f.Actor, *f.WorldSpawn)
		reply.Pose = &out.Pose
		reply.Fee = out.Fee
		reply.Messages = append(reply.Messages, out.Messages...)
		reply.Handled = true
	case TypeRespawned:
		reply.Messages = append(reply.Messages, s.respawns.Respawned(ctx, f.Actor)...)
		reply.Handled = true
	case TypeDisconnected:
		s.respawns.Disconnected(f.Actor.ID)
		reply.Handled = true
	case TypeCommand:
		msgs, ok := s.commands.Handle(ctx, f.Actor, f.Line)
		reply.Messages = append(reply.Messages, msgs...)
		reply.Handled = ok
	default:
		reply.Error = fmt.Sprintf("unknown frame type %q", f.Type)
	}
	return reply
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
