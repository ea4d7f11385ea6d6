package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/network"
	"github.com/gravitas-games/craftd/pkg/models"
)

type contextKey string

const contextPlayer contextKey = "player"

// ErrorResponse is the admin API error body.
type ErrorResponse struct {
	Errors string `json:"errors"`
}

// OwnerInventoryResponse is returned by the inventory endpoint.
type OwnerInventoryResponse struct {
	Inventory network.InventoryPayload `json:"inventory"`
	Crafting  network.CraftingStatus   `json:"crafting"`
}

// AdminRouter returns the admin API. Everything under /admin requires a
// bearer token carrying the admin permission bit.
func (s *Server) AdminRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(s.log.WithLogging())

	r.Get("/health", s.handleHealth)
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/owners", s.listOwnersHandler)
		r.Get("/owners/{owner}/inventory", s.ownerInventoryHandler)
		r.Post("/owners/{owner}/quantity", s.modifyQuantityHandler)
	})
	return r
}

func (s *Server) requireAdmin(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		token := extractTokenFromHeader(r)
		if token == "" {
			writeErrorResponse(w, "missing auth header", http.StatusUnauthorized)
			return
		}
		player, err := s.validator.ValidateToken(r.Context(), token)
		if err != nil {
			writeErrorResponse(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if !player.HasPermission(s.config.JWT.AdminPermission) {
			writeErrorResponse(w, "admin permission required", http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), contextPlayer, player)
		h.ServeHTTP(w, r.WithContext(ctx))
	}
	return http.HandlerFunc(fn)
}

func (s *Server) listOwnersHandler(w http.ResponseWriter, r *http.Request) {
	ids := s.manager.Owners()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) ownerInventoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	owner, ok := s.manager.Get(inventory.OwnerID(chi.URLParam(r, "owner")))
	if !ok {
		writeErrorResponse(w, "owner not connected", http.StatusNotFound)
		return
	}

	bags, err := owner.Bags(ctx)
	if err != nil {
		writeErrorResponse(w, err.Error(), statusCode(err))
		return
	}
	status, err := owner.Status(ctx)
	if err != nil {
		writeErrorResponse(w, err.Error(), statusCode(err))
		return
	}

	writeJSON(w, http.StatusOK, OwnerInventoryResponse{
		Inventory: network.InventoryFrom(owner.ID(), s.manager.Category(), bags),
		Crafting:  network.CraftingFrom(status),
	})
}

func (s *Server) modifyQuantityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	owner, ok := s.manager.Get(inventory.OwnerID(chi.URLParam(r, "owner")))
	if !ok {
		writeErrorResponse(w, "owner not connected", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req network.ModifyQuantityPayload
	if err := json.Unmarshal(body, &req); err != nil {
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Delta == 0 {
		writeErrorResponse(w, "delta must not be zero", http.StatusBadRequest)
		return
	}

	result, err := s.modifyQuantity(ctx, owner, req)
	if err != nil {
		writeErrorResponse(w, err.Error(), statusCode(err))
		return
	}

	if admin, ok := r.Context().Value(contextPlayer).(*models.Player); ok {
		s.log.Info("admin modified quantity",
			zap.String("admin", admin.ID),
			zap.String("owner", string(owner.ID())),
			zap.Uint32("resource", req.ResourceID),
			zap.Int("delta", req.Delta),
			zap.Int("unfulfilled", result.Unfulfilled))
	}
	writeJSON(w, http.StatusOK, result)
}

func writeErrorResponse(w http.ResponseWriter, errorInfo string, status int) {
	writeJSON(w, status, ErrorResponse{Errors: errorInfo})
}
