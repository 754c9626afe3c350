package model

import (
	"time"

	"gorm.io/datatypes"
)

// Loadout persists a weapon's base profile and equipped mod IDs.
type Loadout struct {
	WeaponID  string         `gorm:"primaryKey;size:36" json:"weapon_id"`
	Owner     string         `gorm:"index:idx_loadout_owner;size:64;not null" json:"owner"`
	Name      string         `gorm:"size:64" json:"name"`
	Profile   datatypes.JSON `json:"profile"`
	Mods      datatypes.JSON `json:"mods"` // slot name -> ordered mod IDs
	Version   uint64         `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
