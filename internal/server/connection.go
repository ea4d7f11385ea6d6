package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/crafting"
	"github.com/gravitas-games/craftd/internal/network"
	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
	"github.com/gravitas-games/craftd/internal/session"
	"github.com/gravitas-games/craftd/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBufferSize = 256
)

// Connection is one client's WebSocket. It forwards the owner's inventory
// and crafting notifications to the client and turns client messages into
// owner requests.
type Connection struct {
	id     string
	ws     *websocket.Conn
	server *Server
	player *models.Player
	owner  *session.Owner
	log    *zap.Logger

	// Buffered channel for outbound messages
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewConnection creates a connection for an authenticated player.
func NewConnection(ws *websocket.Conn, server *Server, player *models.Player) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:     id,
		ws:     ws,
		server: server,
		player: player,
		send:   make(chan []byte, sendBufferSize),
		log: server.log.With(
			zap.String("connection", id),
			zap.String("player", player.ID)),
	}
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// Handle manages the connection lifecycle
func (c *Connection) Handle() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()
	c.readPump() // Blocking
}

// readPump pumps messages from the WebSocket connection to the owner
func (c *Connection) readPump() {
	defer c.Close()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			c.log.Debug("failed to parse client message", zap.Error(err))
			c.SendError(network.ErrCodeInvalidMessage, "Failed to parse message")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.server.ctx.Done():
			return
		}
	}
}

// handleMessage routes messages to appropriate handlers
func (c *Connection) handleMessage(msg *network.ClientMessage) {
	c.log.Debug("received message", zap.String("type", msg.Type))

	ctx, cancel := context.WithTimeout(c.server.ctx, requestTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case network.MsgTypeSelectRecipe:
		var p network.SelectRecipePayload
		if !c.decode(msg.Payload, &p) {
			return
		}
		err = c.owner.SelectRecipe(ctx, recipe.ID(p.RecipeID))

	case network.MsgTypeCraftOne:
		err = c.owner.CraftOne(ctx)

	case network.MsgTypeCraftAll:
		err = c.owner.CraftAll(ctx)

	case network.MsgTypeCancelCraft:
		err = c.owner.CancelCraft(ctx)

	case network.MsgTypeModifyQuantity:
		err = c.handleModifyQuantity(ctx, msg.Payload)

	case network.MsgTypeGetInventory:
		err = c.sendInventory(ctx)

	case network.MsgTypePing:
		c.SendMessage(&network.ServerMessage{
			Type:    network.MsgTypePong,
			Payload: map[string]interface{}{"timestamp": time.Now().Unix()},
		})

	default:
		c.SendError(network.ErrCodeUnknownMessageType, "Unknown message type")
		return
	}

	if err != nil {
		c.log.Debug("request rejected", zap.String("type", msg.Type), zap.Error(err))
		c.SendError(errorCode(err), err.Error())
	}
}

func (c *Connection) decode(payload json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		c.SendError(network.ErrCodeInvalidMessage, "Invalid payload")
		return false
	}
	return true
}

func (c *Connection) handleModifyQuantity(ctx context.Context, payload json.RawMessage) error {
	if !c.player.HasPermission(c.server.config.JWT.AdminPermission) {
		c.SendError(network.ErrCodeForbidden, "modify_quantity requires admin permission")
		return nil
	}

	var p network.ModifyQuantityPayload
	if !c.decode(payload, &p) {
		return nil
	}

	result, err := c.server.modifyQuantity(ctx, c.owner, p)
	if err != nil {
		return err
	}
	c.SendMessage(&network.ServerMessage{Type: network.MsgTypeModifyResult, Payload: result})
	return nil
}

func (c *Connection) sendInventory(ctx context.Context) error {
	bags, err := c.owner.Bags(ctx)
	if err != nil {
		return err
	}
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypeInventory,
		Payload: network.InventoryFrom(c.owner.ID(), c.server.manager.Category(), bags),
	})
	return nil
}

func (c *Connection) sendWelcome(ctx context.Context) error {
	bags, err := c.owner.Bags(ctx)
	if err != nil {
		return err
	}
	status, err := c.owner.Status(ctx)
	if err != nil {
		return err
	}

	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeWelcome,
		Payload: network.WelcomePayload{
			PlayerID:      c.player.ID,
			Username:      c.player.Username,
			ConnectionID:  c.id,
			IsAdmin:       c.player.HasPermission(c.server.config.JWT.AdminPermission),
			CatalogDigest: c.server.catalog.Digest,
			Resources:     c.server.resources,
			Recipes:       c.server.recipes,
			Inventory:     network.InventoryFrom(c.owner.ID(), c.server.manager.Category(), bags),
			Crafting:      network.CraftingFrom(status),
		},
	})
	return nil
}

// SlotChanged implements session.Notifier.
func (c *Connection) SlotChanged(bag, slot int, content resource.Quantity) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeSlotChanged,
		Payload: network.SlotChangedPayload{
			Bag:     bag,
			Slot:    slot,
			Content: network.QuantityFrom(content),
		},
	})
}

// BulkChanged implements session.Notifier. The inventory that follows is
// fetched off the owner goroutine, which is busy delivering this call.
func (c *Connection) BulkChanged() {
	c.SendMessage(&network.ServerMessage{Type: network.MsgTypeBulkChanged, Payload: network.BulkChangedPayload{}})
	go func() {
		ctx, cancel := context.WithTimeout(c.server.ctx, requestTimeout)
		defer cancel()
		if err := c.sendInventory(ctx); err != nil {
			c.log.Debug("inventory refresh skipped", zap.Error(err))
		}
	}()
}

// CraftProgress implements session.Notifier.
func (c *Connection) CraftProgress(id recipe.ID, percent float64, delta time.Duration) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeCraftProgress,
		Payload: network.CraftProgressPayload{
			RecipeID: uint32(id),
			Percent:  percent,
			DeltaMs:  delta.Milliseconds(),
		},
	})
}

// CraftResult implements session.Notifier.
func (c *Connection) CraftResult(id recipe.ID, result crafting.State, isAuthority bool) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeCraftResult,
		Payload: network.CraftResultPayload{
			RecipeID:    uint32(id),
			Result:      result.String(),
			IsAuthority: isAuthority,
		},
	})
}

// CraftableChanged implements session.Notifier.
func (c *Connection) CraftableChanged(id recipe.ID, craftable int) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeCraftableChanged,
		Payload: network.CraftableChangedPayload{
			RecipeID:  uint32(id),
			Craftable: craftable,
		},
	})
}

// SendMessage queues a message for the client. It never blocks: a full
// buffer drops the message, a closed connection ignores it.
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping message", zap.String("type", msg.Type))
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close closes the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.ws.Close()
}
