package models

import "time"

// Player represents an authenticated account holding an inventory
type Player struct {
	// From JWT claims
	ID          string `json:"id"`          // Converted from int64 user_id, doubles as the inventory owner id
	Username    string `json:"username"`    // JWT claim
	Email       string `json:"email"`       // JWT claim
	Permissions int64  `json:"permissions"` // JWT claim: bitwise permission flags
	Activated   int64  `json:"activated"`   // JWT claim: activation timestamp or ban status
	AuthMethod  string `json:"auth_method"` // JWT claim: "password" or "oauth"

	// Connection state
	Connected    bool      `json:"connected"`
	ConnectedAt  time.Time `json:"connected_at"`
	ConnectionID string    `json:"connection_id"`
}

// IsActive checks if the player account is activated and not banned
func (p *Player) IsActive() bool {
	// activated > 0 means activated
	// activated == 0 means not activated
	// activated == -1 means banned
	return p.Activated > 0
}

// IsBanned checks if the player is banned
func (p *Player) IsBanned() bool {
	return p.Activated == -1
}

// HasPermission reports whether every bit of mask is granted.
func (p *Player) HasPermission(mask int64) bool {
	return mask != 0 && p.Permissions&mask == mask
}
