package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cory-johannsen/impostor/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Gateway accepts WebSocket connections on the configured path and runs a
// read and a write loop for each.
type Gateway struct {
	cfg      config.GatewayConfig
	handler  Handler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	srv     *http.Server
	wg      sync.WaitGroup
	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

// NewGateway creates a Gateway.
//
// Precondition: cfg must pass config validation; handler and logger must be non-nil.
// Postcondition: Returns a Gateway ready to be started with ListenAndServe.
func NewGateway(cfg config.GatewayConfig, handler Handler, logger *zap.Logger) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		clients: make(map[string]*client),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return g
}

// originChecker returns nil for an empty allow list, which makes the upgrader
// accept same-host origins only.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}

// Handler returns the HTTP handler serving the WebSocket path.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(g.cfg.Path, g.serveWS)
	return mux
}

// ListenAndServe listens on the configured address until Stop is called.
//
// Postcondition: Returns nil after Stop, or the listen error.
func (g *Gateway) ListenAndServe() error {
	start := time.Now()
	listener, err := net.Listen("tcp", g.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.cfg.Addr(), err)
	}

	g.mu.Lock()
	g.srv = &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: g.cfg.ReadTimeout,
	}
	srv := g.srv
	g.mu.Unlock()

	g.logger.Info("websocket gateway listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", g.cfg.Path),
		zap.Duration("startup", time.Since(start)),
	)
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket gateway: %w", err)
	}
	return nil
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := newClient(uuid.NewString(), wsConn, g.cfg.OutboxSize, connConfig{
		readTimeout:     g.cfg.ReadTimeout,
		writeTimeout:    g.cfg.WriteTimeout,
		pingInterval:    g.cfg.PingInterval,
		maxMessageBytes: g.cfg.MaxMessageBytes,
	}, g.logger)

	if !g.track(c) {
		_ = wsConn.Close()
		return
	}
	defer g.wg.Done()

	start := time.Now()
	g.logger.Info("client connected",
		zap.String("conn_id", c.ID()),
		zap.String("remote_addr", r.RemoteAddr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx, g.handler)

	g.handler.Disconnect(c.ID())
	_ = c.entity.Close()
	<-writerDone
	g.untrack(c)

	g.logger.Info("client disconnected",
		zap.String("conn_id", c.ID()),
		zap.Duration("duration", time.Since(start)),
	)
}

func (g *Gateway) track(c *client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.clients[c.ID()] = c
	g.wg.Add(1)
	return true
}

func (g *Gateway) untrack(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, c.ID())
}

// Connections returns the number of open connections.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Stop closes the listener, closes every open connection, and waits for
// their loops to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (g *Gateway) Stop() {
	g.mu.Lock()
	g.closed = true
	srv := g.srv
	open := lo.Values(g.clients)
	g.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			g.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	// Hijacked connections are not closed by Shutdown.
	for _, c := range open {
		_ = c.ws.Close()
	}
	g.wg.Wait()
	g.logger.Info("websocket gateway stopped", zap.Int("closed_connections", len(open)))
}
