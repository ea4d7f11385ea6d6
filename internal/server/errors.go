package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gravitas-games/craftd/internal/crafting"
	"github.com/gravitas-games/craftd/internal/network"
	"github.com/gravitas-games/craftd/internal/session"
)

// errorCode maps a domain error to the code sent to clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, crafting.ErrInvalidResource):
		return network.ErrCodeInvalidResource
	case errors.Is(err, crafting.ErrInvalidRecipe):
		return network.ErrCodeInvalidRecipe
	case errors.Is(err, crafting.ErrInsufficientResources):
		return network.ErrCodeInsufficientResources
	case errors.Is(err, crafting.ErrAlreadyCrafting):
		return network.ErrCodeAlreadyCrafting
	case errors.Is(err, crafting.ErrNotCrafting):
		return network.ErrCodeNotCrafting
	case errors.Is(err, crafting.ErrInvalidCount):
		return network.ErrCodeInvalidCount
	case errors.Is(err, session.ErrNotConnected):
		return network.ErrCodeNotConnected
	default:
		return network.ErrCodeInternal
	}
}

// statusCode maps a domain error to an admin API status.
func statusCode(err error) int {
	switch errorCode(err) {
	case network.ErrCodeInvalidResource, network.ErrCodeInvalidRecipe, network.ErrCodeInvalidCount:
		return http.StatusBadRequest
	case network.ErrCodeInsufficientResources, network.ErrCodeAlreadyCrafting, network.ErrCodeNotCrafting:
		return http.StatusConflict
	case network.ErrCodeNotConnected:
		return http.StatusNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
