package network

import "encoding/json"

// Message types - Client → Server
const (
	MsgTypeSelectRecipe   = "select_recipe"
	MsgTypeCraftOne       = "craft_one"
	MsgTypeCraftAll       = "craft_all"
	MsgTypeCancelCraft    = "cancel_craft"
	MsgTypeModifyQuantity = "modify_quantity" // admin only
	MsgTypeGetInventory   = "get_inventory"
	MsgTypePing           = "ping"
)

// Message types - Server → Client
const (
	MsgTypeWelcome          = "welcome"
	MsgTypeInventory        = "inventory"
	MsgTypeSlotChanged      = "slot_changed"
	MsgTypeBulkChanged      = "bulk_changed"
	MsgTypeCraftProgress    = "craft_progress"
	MsgTypeCraftResult      = "craft_result"
	MsgTypeCraftableChanged = "craftable_changed"
	MsgTypeModifyResult     = "modify_result"
	MsgTypeError            = "error"
	MsgTypePong             = "pong"
)

// Error codes carried by ErrorPayload.
const (
	ErrCodeInvalidResource       = "invalid_resource"
	ErrCodeInvalidRecipe         = "invalid_recipe"
	ErrCodeInsufficientResources = "insufficient_resources"
	ErrCodeAlreadyCrafting       = "already_crafting"
	ErrCodeNotCrafting           = "not_crafting"
	ErrCodeInvalidCount          = "invalid_count"
	ErrCodeForbidden             = "forbidden"
	ErrCodeInvalidMessage        = "invalid_message"
	ErrCodeUnknownMessageType    = "unknown_message_type"
	ErrCodeNotConnected          = "not_connected"
	ErrCodeAlreadyConnected      = "already_connected"
	ErrCodeInternal              = "internal"
)

// ClientMessage represents any message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage represents any message from server to client
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// --- Client Message Payloads ---

// SelectRecipePayload chooses the recipe for later craft requests. Zero
// clears the selection.
type SelectRecipePayload struct {
	RecipeID uint32 `json:"recipe_id"`
}

// ModifyQuantityPayload adds (positive) or removes (negative) resources.
type ModifyQuantityPayload struct {
	ResourceID uint32 `json:"resource_id"`
	Delta      int    `json:"delta"`
}

// --- Server Message Payloads ---

// Quantity is a resource amount on the wire.
type Quantity struct {
	ResourceID uint32 `json:"resource_id"`
	Amount     int    `json:"amount"`
}

// ResourceInfo describes one resource definition.
type ResourceInfo struct {
	ID            uint32   `json:"id"`
	Name          string   `json:"name"`
	Categories    []string `json:"categories"`
	StackLimit    int      `json:"stack_limit"`
	QuantityLimit int      `json:"quantity_limit"`
}

// RecipeInfo describes one recipe definition.
type RecipeInfo struct {
	ID           uint32     `json:"id"`
	Name         string     `json:"name"`
	DurationMs   int64      `json:"duration_ms"`
	Result       Quantity   `json:"result"`
	Requirements []Quantity `json:"requirements"`
}

// BagPayload is one container with its slots in index order. Empty slots
// have resource_id 0.
type BagPayload struct {
	ID        string     `json:"id"`
	Capacity  int        `json:"capacity"`
	Used      int        `json:"used"`
	Available int        `json:"available"`
	Slots     []Quantity `json:"slots"`
}

// InventoryPayload is the full inventory.
type InventoryPayload struct {
	Owner    string       `json:"owner"`
	Category string       `json:"category"`
	Bags     []BagPayload `json:"bags"`
}

// CraftingStatus is the crafting session state.
type CraftingStatus struct {
	State     string  `json:"state"`
	RecipeID  uint32  `json:"recipe_id"`
	Requested int     `json:"requested"`
	Remaining int     `json:"remaining"`
	Progress  float64 `json:"progress"`
	Craftable int     `json:"craftable"`
}

// WelcomePayload is sent to client after successful connection
type WelcomePayload struct {
	PlayerID      string           `json:"player_id"`
	Username      string           `json:"username"`
	ConnectionID  string           `json:"connection_id"`
	IsAdmin       bool             `json:"is_admin"`
	CatalogDigest string           `json:"catalog_digest"`
	Resources     []ResourceInfo   `json:"resources"`
	Recipes       []RecipeInfo     `json:"recipes"`
	Inventory     InventoryPayload `json:"inventory"`
	Crafting      CraftingStatus   `json:"crafting"`
}

// SlotChangedPayload reports the new content of one slot.
type SlotChangedPayload struct {
	Bag     int      `json:"bag"`
	Slot    int      `json:"slot"`
	Content Quantity `json:"content"`
}

// BulkChangedPayload tells the client to refresh every slot view. It is
// always followed by an inventory message.
type BulkChangedPayload struct{}

// CraftProgressPayload reports the current unit's progress.
type CraftProgressPayload struct {
	RecipeID uint32  `json:"recipe_id"`
	Percent  float64 `json:"percent"` // 0..1
	DeltaMs  int64   `json:"delta_ms"`
}

// CraftResultPayload reports a finished or rejected craft.
type CraftResultPayload struct {
	RecipeID    uint32 `json:"recipe_id"`
	Result      string `json:"result"` // Completed, Canceled or Failed
	IsAuthority bool   `json:"is_authority"`
}

// CraftableChangedPayload reports the craftable count of the selection.
type CraftableChangedPayload struct {
	RecipeID  uint32 `json:"recipe_id"`
	Craftable int    `json:"craftable"`
}

// ModifyResultPayload answers modify_quantity.
type ModifyResultPayload struct {
	ResourceID  uint32 `json:"resource_id"`
	Requested   int    `json:"requested"`
	Unfulfilled int    `json:"unfulfilled"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
