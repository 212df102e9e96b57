// Package server bridges a game session to remote renderer and input collaborators over
// websockets. One goroutine owns the session: commands from clients, clock ticks and the
// resulting bus messages are all handled on it, and every bus message is broadcast to
// every client.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/flight"
	"github.com/paulrobello/par-shape-2d/internal/core/game"
	"github.com/paulrobello/par-shape-2d/internal/core/level"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/storage"
)

// Config holds server configuration
type Config struct {
	ListenAddr   string        `json:"listen_addr" yaml:"listen_addr"`
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`
	MaxClients   int           `json:"max_clients" yaml:"max_clients"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// SendBuffer is the per-client queue length; a client that falls this far behind is dropped.
	SendBuffer int `json:"send_buffer" yaml:"send_buffer"`
	// Token, when set, must be passed as the token query parameter.
	Token string `json:"token" yaml:"token"`
	// Headless completes animations on the server clock instead of waiting for a
	// renderer to report them.
	Headless bool `json:"headless" yaml:"headless"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":8080",
		TickInterval: 16 * time.Millisecond,
		MaxClients:   64,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   256,
		Headless:     true,
	}
}

// Frame is what clients receive: bus messages, command replies and the greeting.
type Frame struct {
	Type    string `json:"type"`
	Source  string `json:"source,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	FrameHello        = "server.hello"
	FrameCommandOK    = "command.ok"
	FrameCommandError = "command.error"
)

type request struct {
	cmd   Command
	reply chan error
}

type Server struct {
	config   Config
	session  *game.Session
	bus      bus.EventBus
	tweener  *flight.Tweener
	level    *level.Definition
	store    storage.Store
	logger   log.Log
	upgrader websocket.Upgrader

	requests chan request
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer wires a server around a session. store may be nil, which disables the save
// and load commands.
func NewServer(
	config Config,
	session *game.Session,
	b bus.EventBus,
	tweener *flight.Tweener,
	def *level.Definition,
	store storage.Store,
	logger log.Log,
) *Server {
	return &Server{
		config:  config,
		session: session,
		bus:     b,
		tweener: tweener,
		level:   def,
		store:   store,
		logger:  logger.With(log.String("component", "server")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		requests: make(chan request),
		done:     make(chan struct{}),
		clients:  make(map[*client]struct{}),
	}
}

// Run serves websocket clients on the configured address and drives the session until
// ctx is cancelled or either side fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	httpServer := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return s.RunSession(ctx) })
	g.Go(func() error {
		s.logger.Info("Listening", log.String("addr", s.config.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		return httpServer.Shutdown(shutdown)
	})
	return g.Wait()
}

// RunSession loads the level and owns the session until ctx is done: it applies client
// commands and advances the session clock every tick.
func (s *Server) RunSession(ctx context.Context) error {
	defer s.stopOnce.Do(func() { close(s.done) })

	sub, err := s.bus.SubscribeAll(func(e bus.Event) error {
		s.broadcast(Frame{Type: e.Type(), Source: e.Source(), Payload: e.Data()})
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Cancel() }()

	obs := busObserver{logger: s.logger}
	s.bus.AddObserver(obs)
	defer s.bus.RemoveObserver(obs)

	if s.config.Headless && s.tweener != nil {
		if err := s.tweener.Start(); err != nil {
			return err
		}
		defer func() { _ = s.tweener.Stop() }()
	}
	if err := s.restart(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session loop stopped")
			return nil
		case now := <-ticker.C:
			s.session.Tick(now.Sub(last))
			last = now
		case req := <-s.requests:
			req.reply <- s.apply(ctx, req.cmd)
		}
	}
}

// Submit hands a command to the session goroutine and waits for its result.
func (s *Server) Submit(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) restart() error {
	if s.level == nil {
		return ErrNoLevel
	}
	b, err := s.level.Build()
	if err != nil {
		return err
	}
	return s.session.Load(b, s.level.Containers)
}

func (s *Server) broadcast(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("Frame encoding failed", log.String("type", f.Type), log.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Warn("Dropping slow client", log.String("client", c.id))
			delete(s.clients, c)
			c.close()
		}
	}
}

// deliver queues a frame for one client, if it is still connected.
func (s *Server) deliver(c *client, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("Frame encoding failed", log.String("type", f.Type), log.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		delete(s.clients, c)
		c.close()
	}
}

func (s *Server) register(c *client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= s.config.MaxClients {
		return ErrMaxClientsReached
	}
	s.clients[c] = struct{}{}
	s.logger.Info("Client connected", log.String("client", c.id), log.Int("clients", len(s.clients)))
	return nil
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
		s.logger.Info("Client disconnected", log.String("client", c.id), log.Int("clients", len(s.clients)))
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
