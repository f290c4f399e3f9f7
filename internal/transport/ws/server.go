package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"harvestcraft.ai/internal/protocol"
	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/chunk"
	"harvestcraft.ai/internal/sim/terrain/store"
	"harvestcraft.ai/internal/sim/world"
)

type Server struct {
	sess *world.Session
	log  *log.Logger

	// StepInterval paces amortized chunk streaming.
	StepInterval time.Duration
	TuningDigest string

	upgrader websocket.Upgrader

	mu     sync.Mutex
	closed bool
	conns  map[*websocket.Conn]struct{}
	wg     sync.WaitGroup
}

func NewServer(s *world.Session, logger *log.Logger) *Server {
	return &Server{
		sess:         s,
		log:          logger,
		StepInterval: 50 * time.Millisecond,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		conns: map[*websocket.Conn]struct{}{},
	}
}

// track registers a live connection. It fails once Close has started.
func (s *Server) track(ws *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[ws] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(ws *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, ws)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close refuses new connections, closes the live ones and waits until every
// handler has left the session. http.Server.Shutdown does not wait for
// hijacked connections, so callers run this before closing the session.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	live := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		live = append(live, c)
	}
	s.mu.Unlock()

	for _, c := range live {
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		_ = c.Close()
	}
	s.logf("ws: closing %d connections", len(live))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// conn is one joined viewer. Window operations are serialized by mu so the
// reader loop and the streamer never step the same manager concurrently.
type conn struct {
	srv    *Server
	viewer *world.Viewer
	out    chan []byte

	mu          sync.Mutex
	pending     int
	prefetchDue bool
	wake        chan struct{}
}

func (c *conn) send(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.isClosed() {
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		}
		ws, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if !s.track(ws) {
			return
		}
		defer s.untrack(ws)

		c, hello := s.handshake(ws)
		if c == nil {
			return
		}
		id := c.viewer.ID

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()
		streamDone := make(chan struct{})
		go func() {
			defer close(streamDone)
			c.stream(ctx)
		}()

		var x, z float64
		if hello.X != nil {
			x = *hello.X
		}
		if hello.Z != nil {
			z = *hello.Z
		}
		if err := c.move(ctx, x, z); err != nil {
			s.logf("ws %s: initial move: %v", id, err)
		}

		// Reader loop.
		for ctx.Err() == nil {
			_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := ws.ReadMessage()
			if err != nil {
				break
			}
			if err := c.handle(ctx, msg); err != nil {
				s.logf("ws %s: %v", id, err)
			}
		}
		cancel()
		<-streamDone

		// Cleanup.
		if err := s.sess.Leave(context.Background(), id); err != nil {
			s.logf("ws %s: leave: %v", id, err)
		}
	}
}

func (s *Server) handshake(ws *websocket.Conn) (*conn, protocol.HelloMsg) {
	var hello protocol.HelloMsg
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return nil, hello
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, hello
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, hello
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(ws, protocol.ErrorMsg{
			Type: protocol.TypeError, ProtocolVersion: protocol.Version,
			Code: protocol.ErrProtoVersion, Message: fmt.Sprintf("protocol_version %q not supported", hello.ProtocolVersion),
		})
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, hello
	}
	name := strings.TrimSpace(hello.Name)
	if name == "" {
		name = "viewer"
	}

	id := uuid.NewString()
	v, err := s.sess.Join(id, name)
	if err != nil {
		s.logf("ws: join %s: %v", name, err)
		return nil, hello
	}
	if err := writeJSON(ws, welcomeMsg(s.sess, id, s.TuningDigest)); err != nil {
		_ = s.sess.Leave(context.Background(), id)
		return nil, hello
	}
	return &conn{
		srv:    s,
		viewer: v,
		out:    make(chan []byte, 32),
		wake:   make(chan struct{}, 1),
	}, hello
}

func (c *conn) handle(ctx context.Context, msg []byte) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return c.sendError(ctx, protocol.ErrProtoBadRequest, "invalid json")
	}
	if base.ProtocolVersion != protocol.Version {
		return c.sendError(ctx, protocol.ErrProtoVersion, "bad protocol_version")
	}
	switch base.Type {
	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return c.sendError(ctx, protocol.ErrProtoBadRequest, "bad MOVE")
		}
		return c.move(ctx, m.X, m.Z)
	case protocol.TypeAct:
		var a protocol.ActMsg
		if err := json.Unmarshal(msg, &a); err != nil {
			return c.sendError(ctx, protocol.ErrProtoBadRequest, "bad ACT")
		}
		return c.act(ctx, a)
	case protocol.TypeHello:
		return c.sendError(ctx, protocol.ErrAlreadyJoined, "already joined")
	default:
		return c.sendError(ctx, protocol.ErrProtoBadRequest, "unknown message type "+base.Type)
	}
}

func (c *conn) sendError(ctx context.Context, code, message string) error {
	return c.send(ctx, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
}

func (c *conn) move(ctx context.Context, x, z float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.viewer.MoveStep(ctx, x, z)
	if err != nil {
		return err
	}
	c.prefetchDue = true
	return c.publishLocked(ctx, w)
}

// publishLocked sends the window diff and the underground view, then wakes
// the streamer while chunks are pending.
func (c *conn) publishLocked(ctx context.Context, w store.Window) error {
	c.pending = w.Pending
	if w.Pending > 0 {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
	msg, err := chunksMsg(ctx, c.srv.sess.Overlays(), w)
	if err != nil {
		return err
	}
	if err := c.send(ctx, msg); err != nil {
		return err
	}
	return c.sendUndergroundLocked(ctx)
}

func (c *conn) sendUndergroundLocked(ctx context.Context) error {
	blocks, err := c.viewer.Underground(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, undergroundMsg(blocks))
}

// stream generates the rest of the window a few chunks per interval and,
// once it is complete, prefetches the ring around it.
func (c *conn) stream(ctx context.Context) {
	t := time.NewTicker(c.srv.StepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		case <-t.C:
		}
		c.mu.Lock()
		if c.pending == 0 {
			due := c.prefetchDue
			c.prefetchDue = false
			c.mu.Unlock()
			if due {
				if err := c.viewer.PrefetchAhead(ctx); err != nil && !errors.Is(err, context.Canceled) {
					c.srv.logf("ws %s: prefetch: %v", c.viewer.ID, err)
				}
			}
			continue
		}
		w, err := c.viewer.Continue(ctx)
		if err == nil && len(w.Entered) > 0 {
			err = c.publishLocked(ctx, w)
		}
		if err == nil {
			c.pending = w.Pending
		}
		c.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			c.srv.logf("ws %s: stream: %v", c.viewer.ID, err)
		}
	}
}

func (c *conn) act(ctx context.Context, a protocol.ActMsg) error {
	res := protocol.ActResultMsg{
		Type:            protocol.TypeActResult,
		ProtocolVersion: protocol.Version,
		ID:              a.ID,
		Kind:            a.Kind,
	}
	err := c.apply(ctx, a, &res)
	if err != nil {
		res.Code = CodeFor(err)
		res.Message = err.Error()
		var bad badRequest
		if errors.As(err, &bad) {
			res.Code = protocol.ErrBadRequest
		}
	} else {
		res.OK = true
	}
	if err := c.send(ctx, res); err != nil {
		return err
	}
	if res.OK && a.Kind == protocol.ActMine {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.sendUndergroundLocked(ctx)
	}
	return nil
}

type badRequest string

func (b badRequest) Error() string { return string(b) }

func (c *conn) apply(ctx context.Context, a protocol.ActMsg, res *protocol.ActResultMsg) error {
	v := c.viewer
	switch a.Kind {
	case protocol.ActMine:
		if len(a.Pos) != 3 {
			return badRequest("MINE needs pos [x,y,z]")
		}
		r, err := v.Mine(ctx, chunk.BlockPos{X: a.Pos[0], Y: a.Pos[1], Z: a.Pos[2]}, a.Tool)
		if err != nil {
			return err
		}
		res.Block, res.Drop, res.Seconds = r.Block, r.Drop, r.Seconds
		return nil
	case protocol.ActTill, protocol.ActWater, protocol.ActPlant, protocol.ActHarvest:
	default:
		return badRequest("unknown kind " + a.Kind)
	}

	var cell chunk.CellPos
	switch len(a.Pos) {
	case 2:
		cell = chunk.CellPos{X: a.Pos[0], Z: a.Pos[1]}
	case 3:
		if a.Pos[1] != 0 {
			return badRequest("plots are on the surface (y=0)")
		}
		cell = chunk.CellPos{X: a.Pos[0], Z: a.Pos[2]}
	default:
		return badRequest(a.Kind + " needs pos [x,z]")
	}
	switch a.Kind {
	case protocol.ActHarvest:
		r, err := v.Harvest(ctx, cell)
		if err != nil {
			return err
		}
		res.Item, res.Count = r.Item, r.Count
		res.Plot = string(overlay.PlotTilled)
		return nil
	case protocol.ActTill:
		p, err := v.Till(ctx, cell)
		res.Plot = string(p.State)
		return err
	case protocol.ActWater:
		p, err := v.Water(ctx, cell)
		res.Plot = string(p.State)
		return err
	default:
		p, err := v.Plant(ctx, cell, a.Crop)
		res.Plot = string(p.State)
		return err
	}
}

func writeJSON(ws *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, b)
}
