package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxeledit.ai/internal/observerproto"
	"voxeledit.ai/internal/sim/catalogs"
	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/world"
)

// Server streams frame reports and mesh deltas to observers and accepts
// edits and picks from them. It is a world.FrameSink.
type Server struct {
	world *world.World
	cats  *catalogs.Catalogs
	log   *zap.Logger

	upgrader    websocket.Upgrader
	allowRemote bool
	nextID      atomic.Uint64

	mu   sync.Mutex
	subs map[string]*subscriber

	dropped atomic.Uint64
}

type subscriber struct {
	id       string
	out      chan []byte
	geometry bool
}

type Option func(*Server)

// AllowRemote disables the loopback-only check.
func AllowRemote(allow bool) Option { return func(s *Server) { s.allowRemote = allow } }

func NewServer(w *world.World, cats *catalogs.Catalogs, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		world: w,
		cats:  cats,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*subscriber{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes mounts the observer endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
}

func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped counts subscribers disconnected for falling behind.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		var resp observerproto.BootstrapResponse
		err := s.world.Do(r.Context(), func(w *world.World) error {
			cfg := w.Config()
			resp = observerproto.BootstrapResponse{
				ProtocolVersion: observerproto.Version,
				WorldID:         cfg.ID,
				Frame:           w.Frame(),
				WorldParams: observerproto.WorldParams{
					FrameRateHz:    cfg.FrameRateHz,
					ChunkEdge:      cfg.ChunkEdge,
					Codec:          cfg.Codec,
					MaxUndoHistory: cfg.MaxUndoHistory,
				},
				Chunks:  w.Chunks().Len(),
				Meshes:  w.Meshes().Len(),
				UndoLen: w.Timeline().UndoLen(),
				RedoLen: w.Timeline().RedoLen(),
			}
			return nil
		})
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if s.cats != nil {
			resp.Palette = append([]string(nil), s.cats.Names...)
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}
		normalizeSubscribe(&sub)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sb := &subscriber{
			id:       fmt.Sprintf("O%d", s.nextID.Add(1)),
			out:      make(chan []byte, sub.MaxQueue),
			geometry: sub.IncludeGeometry,
		}
		// Registering between frames keeps the initial mesh set and the
		// first delta consistent.
		if err := s.world.Do(ctx, func(w *world.World) error {
			b, err := json.Marshal(meshesMsg(w, sb.geometry))
			if err != nil {
				return err
			}
			sb.out <- b
			s.mu.Lock()
			s.subs[sb.id] = sb
			s.mu.Unlock()
			return nil
		}); err != nil {
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		defer s.remove(sb.id)
		log := s.log.With(zap.String("observer", sb.id))
		log.Info("observer subscribed", zap.Bool("geometry", sb.geometry), zap.String("remote", r.RemoteAddr))

		replies := make(chan []byte, 16)

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-sb.out:
					if !ok {
						// Dropped for falling behind.
						closeWith(conn, websocket.CloseTryAgainLater, "slow consumer")
						writeErr <- nil
						return
					}
					if err := writeText(conn, b); err != nil {
						writeErr <- err
						return
					}
				case b := <-replies:
					if err := writeText(conn, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: edits and ray casts.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var base observerproto.Base
			if err := json.Unmarshal(msg, &base); err != nil || base.ProtocolVersion != observerproto.Version {
				continue
			}
			var reply any
			switch base.Type {
			case observerproto.TypeEdit:
				var em observerproto.EditMsg
				if err := json.Unmarshal(msg, &em); err != nil {
					continue
				}
				reply = s.edit(ctx, em)
			case observerproto.TypeRayCast:
				var rm observerproto.RayCastMsg
				if err := json.Unmarshal(msg, &rm); err != nil {
					continue
				}
				reply = s.rayCast(ctx, rm)
			default:
				continue
			}
			b, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			select {
			case replies <- b:
			case <-ctx.Done():
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")
		log.Info("observer left")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// WriteFrame fans a frame out to every subscriber. It never blocks the
// frame loop: a subscriber whose queue is full is disconnected, since a
// missed delta would leave its mesh set wrong.
func (s *Server) WriteFrame(rep world.FrameReport, deltas []mesh.MeshDelta) error {
	if rep.Dirty == 0 && len(rep.Reclaimed) == 0 && len(rep.Actions) == 0 && len(deltas) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return nil
	}

	var encoded [2][]byte
	encode := func(geometry bool) ([]byte, error) {
		i := 0
		if geometry {
			i = 1
		}
		if encoded[i] == nil {
			b, err := json.Marshal(frameMsg(rep, deltas, geometry))
			if err != nil {
				return nil, err
			}
			encoded[i] = b
		}
		return encoded[i], nil
	}

	for id, sb := range s.subs {
		b, err := encode(sb.geometry)
		if err != nil {
			return err
		}
		select {
		case sb.out <- b:
		default:
			close(sb.out)
			delete(s.subs, id)
			s.dropped.Add(1)
			s.log.Warn("observer dropped: queue full", zap.String("observer", id), zap.Uint64("frame", rep.Frame))
		}
	}
	return nil
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *Server) allowed(r *http.Request) bool {
	return s.allowRemote || isLoopbackRemote(r.RemoteAddr)
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.MaxQueue <= 0 {
		sub.MaxQueue = 64
	}
	if sub.MaxQueue > 4096 {
		sub.MaxQueue = 4096
	}
}

func writeText(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
