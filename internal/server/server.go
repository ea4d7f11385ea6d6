// Package server exposes connected owners over WebSocket and an HTTP admin
// API. Every client is authenticated with a JWT issued by the login server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/catalog"
	"github.com/gravitas-games/craftd/internal/config"
	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/network"
	"github.com/gravitas-games/craftd/internal/pkg/logger"
	"github.com/gravitas-games/craftd/internal/resource"
	"github.com/gravitas-games/craftd/internal/session"
)

const (
	requestTimeout      = 10 * time.Second
	accessTokenProtocol = "access_token"
)

// Server represents the crafting server
type Server struct {
	config    *config.Config
	manager   *session.Manager
	catalog   *catalog.Catalog
	validator *JWTValidator
	log       *logger.Logger
	upgrader  websocket.Upgrader

	// Definitions sent with every welcome
	resources []network.ResourceInfo
	recipes   []network.RecipeInfo

	httpSrv  *http.Server
	adminSrv *http.Server
	srvMu    sync.Mutex

	// Connection tracking
	connections map[*Connection]bool
	connMu      sync.RWMutex
	handlers    sync.WaitGroup

	// Shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config, manager *session.Manager, cat *catalog.Catalog, validator *JWTValidator, l *logger.Logger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:      cfg,
		manager:     manager,
		catalog:     cat,
		validator:   validator,
		log:         l.Named("server"),
		resources:   network.ResourcesFrom(cat.Resources.Export()),
		recipes:     network.RecipesFrom(cat.Recipes.All()),
		connections: make(map[*Connection]bool),
		ctx:         ctx,
		cancel:      cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{accessTokenProtocol},
			CheckOrigin: func(r *http.Request) bool {
				// TODO: check Origin against a configured allow list before exposing publicly
				return true
			},
		},
	}
}

// Router returns the client-facing routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	return r
}

// Start begins listening for client connections
func (s *Server) Start(addr string) error {
	s.log.Info("starting WebSocket server", zap.String("addr", addr))
	return s.listen(&s.httpSrv, addr, s.Router())
}

// StartAdmin begins serving the admin API
func (s *Server) StartAdmin(addr string) error {
	s.log.Info("starting admin API", zap.String("addr", addr))
	return s.listen(&s.adminSrv, addr, s.AdminRouter())
}

func (s *Server) listen(slot **http.Server, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.srvMu.Lock()
	*slot = srv
	s.srvMu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes the open ones and waits
// until every owner has been disconnected and saved.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")

	s.srvMu.Lock()
	s.cancel()
	servers := []*http.Server{s.httpSrv, s.adminSrv}
	s.srvMu.Unlock()

	var errs []error
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.connMu.RLock()
	for conn := range s.connections {
		conn.Close()
	}
	s.connMu.RUnlock()

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for connections: %w", ctx.Err()))
	}

	s.log.Info("server shutdown complete")
	return errors.Join(errs...)
}

// handleWebSocket authenticates, upgrades and serves one client until it
// disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := extractTokenFromHeader(r)
	if tokenString == "" {
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}

	player, err := s.validator.ValidateToken(r.Context(), tokenString)
	if err != nil {
		s.log.Info("rejected token", zap.String("remote", r.RemoteAddr), zap.Error(err))
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	s.srvMu.Lock()
	if s.ctx.Err() != nil {
		s.srvMu.Unlock()
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.handlers.Add(1)
	s.srvMu.Unlock()
	defer s.handlers.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(ws, s, player)
	ownerID := inventory.OwnerID(player.ID)

	ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
	owner, err := s.manager.OnOwnerConnected(ctx, ownerID, conn)
	if err == nil {
		conn.owner = owner
		err = conn.sendWelcome(ctx)
	}
	cancel()
	if err != nil {
		conn.log.Warn("failed to start session", zap.Error(err))
		code := network.ErrCodeInternal
		if errors.Is(err, session.ErrAlreadyConnected) {
			code = network.ErrCodeAlreadyConnected
		}
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		ws.WriteJSON(network.ServerMessage{
			Type:    network.MsgTypeError,
			Payload: network.ErrorPayload{Code: code, Message: err.Error()},
		})
		if owner != nil {
			s.disconnect(conn, ownerID)
		}
		conn.Close()
		return
	}

	player.Connected = true
	player.ConnectedAt = time.Now()
	player.ConnectionID = conn.ID()

	s.connMu.Lock()
	s.connections[conn] = true
	s.connMu.Unlock()

	conn.log.Info("websocket connection established", zap.String("username", player.Username), zap.String("remote", r.RemoteAddr))

	conn.Handle()

	s.connMu.Lock()
	delete(s.connections, conn)
	s.connMu.Unlock()

	s.disconnect(conn, ownerID)
	conn.log.Info("websocket connection closed")
}

// disconnect saves the owner. It runs on its own deadline since the server
// context is already canceled during shutdown.
func (s *Server) disconnect(conn *Connection, id inventory.OwnerID) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.manager.OnOwnerDisconnected(ctx, id); err != nil && !errors.Is(err, session.ErrNotConnected) {
		conn.log.Error("failed to disconnect owner", zap.Error(err))
	}
}

// modifyQuantity validates and applies an admin quantity change.
func (s *Server) modifyQuantity(ctx context.Context, owner *session.Owner, p network.ModifyQuantityPayload) (network.ModifyResultPayload, error) {
	id := resource.ID(p.ResourceID)
	if _, err := s.catalog.Resources.Lookup(id); err != nil {
		return network.ModifyResultPayload{}, err
	}
	rest, err := owner.ModifyQuantity(ctx, id, p.Delta)
	if err != nil {
		return network.ModifyResultPayload{}, err
	}
	return network.ModifyResultPayload{
		ResourceID:  p.ResourceID,
		Requested:   p.Delta,
		Unfulfilled: rest,
	}, nil
}

type healthResponse struct {
	Status string `json:"status"`
	Owners int    `json:"owners"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Owners: s.manager.Count()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
