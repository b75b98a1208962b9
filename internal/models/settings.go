package models

import (
	"time"

	"github.com/uptrace/bun"
)

// GatewaySettings is the stored credentials document for the NVP gateway.
// A single row named "gateway" holds the values; site-level environment
// overrides take precedence over whatever is stored here.
type GatewaySettings struct {
	bun.BaseModel `bun:"table:gateway_settings"`

	Name        string    `bun:"name,pk" json:"name"`
	APIUsername string    `bun:"api_username,nullzero" json:"api_username,omitempty"`
	APIPassword string    `bun:"api_password,nullzero" json:"-"`
	Signature   string    `bun:"signature,nullzero" json:"-"`
	Sandbox     bool      `bun:"sandbox" json:"sandbox"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// SettingsName is the primary key of the single gateway_settings row.
const SettingsName = "gateway"
