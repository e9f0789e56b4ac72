package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	maxReadSize = 4 * 1024
	jpegQuality = 80
)

// welcome is the first (text) message on every connection. Binary JPEG
// frames follow.
type welcome struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type message struct {
	typ  websocket.MessageType
	data []byte
}

type client struct {
	id   string
	conn *websocket.Conn
	// send holds at most one pending frame; a newer frame replaces it.
	send chan message
}

// offer queues a frame, replacing one the client has not taken yet. Only
// the Run goroutine offers.
func (c *client) offer(msg message) {
	select {
	case c.send <- msg:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Stream is an engine.Target that broadcasts every presented frame to
// websocket clients as JPEG. Frames a client cannot keep up with are
// dropped for that client only.
type Stream struct {
	frames  *FrameTarget
	origins []string

	mu      sync.RWMutex
	clients map[string]*client

	register   chan *client
	unregister chan *client
	done       chan struct{}
	stopOnce   sync.Once
	cancel     context.CancelFunc
	ctx        context.Context
}

// NewStream creates a stream of w×h frames. origins are websocket origin
// patterns accepted in addition to same-host requests.
func NewStream(w, h int, origins []string) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		frames:     NewFrameTarget(w, h),
		origins:    origins,
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Stream) Size() (int, int) { return s.frames.Size() }

func (s *Stream) Present(img *image.RGBA) { s.frames.Present(img) }

// Frames exposes the stream's latest raw frame.
func (s *Stream) Frames() *FrameTarget { return s.frames }

// Run encodes and broadcasts frames until ctx is cancelled or Close is
// called, then disconnects every client.
func (s *Stream) Run(ctx context.Context) {
	defer s.shutdown()

	var lastSeq uint64
	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case c := <-s.register:
			s.mu.Lock()
			if s.ctx.Err() != nil {
				close(c.send)
				s.mu.Unlock()
				continue
			}
			s.clients[c.id] = c
			s.mu.Unlock()
			slog.Info("mirror client joined", "client", c.id)
		case c := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[c.id]; ok {
				delete(s.clients, c.id)
				close(c.send)
			}
			s.mu.Unlock()
			slog.Info("mirror client left", "client", c.id)
		case <-s.frames.Updates():
			img, seq := s.frames.Latest()
			if img == nil || seq == lastSeq || s.ClientCount() == 0 {
				continue
			}
			lastSeq = seq
			buf.Reset()
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
				slog.Error("encode mirror frame", "error", err)
				continue
			}
			s.broadcast(message{typ: websocket.MessageBinary, data: bytes.Clone(buf.Bytes())})
		}
	}
}

func (s *Stream) broadcast(msg message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.offer(msg)
	}
}

func (s *Stream) shutdown() {
	s.stopOnce.Do(func() {
		s.cancel()
		close(s.done)
		s.mu.Lock()
		for id, c := range s.clients {
			close(c.send)
			delete(s.clients, id)
		}
		s.mu.Unlock()
	})
}

// Close stops Run and disconnects clients.
func (s *Stream) Close() error {
	s.cancel()
	s.shutdown()
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Stream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Routes mounts the websocket endpoint, a still frame and a health check.
func (s *Stream) Routes(r *mux.Router) {
	r.HandleFunc("/mirror/ws", s.ServeWS)
	r.HandleFunc("/mirror/frame.png", s.ServeFrame).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.ClientCount()})
	}).Methods("GET")
}

// ServeFrame returns the latest frame as PNG.
func (s *Stream) ServeFrame(w http.ResponseWriter, r *http.Request) {
	img, _ := s.frames.Latest()
	if img == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		slog.Debug("write mirror frame", "error", err)
	}
}

// ServeWS upgrades the request and streams frames until either side
// closes.
func (s *Stream) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}
	conn.SetReadLimit(maxReadSize)

	c := &client{id: uuid.New().String(), conn: conn, send: make(chan message, 1)}
	width, height := s.frames.Size()
	hello, _ := json.Marshal(welcome{Type: "welcome", ClientID: c.id, Width: width, Height: height})
	c.send <- message{typ: websocket.MessageText, data: hello}

	select {
	case s.register <- c:
	case <-s.done:
		conn.Close(websocket.StatusGoingAway, "mirror stopped")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.writePump(ctx, c)
	s.readPump(ctx, c)
}

// readPump discards client messages and unregisters on disconnect.
func (s *Stream) readPump(ctx context.Context, c *client) {
	defer func() {
		select {
		case s.unregister <- c:
		case <-s.done:
		}
	}()
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				slog.Debug("mirror read error", "error", err, "client", c.id)
			}
			return
		}
	}
}

func (s *Stream) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "mirror stopped")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, msg.typ, msg.data)
			cancel()
			if err != nil {
				slog.Debug("mirror write error", "error", err, "client", c.id)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
