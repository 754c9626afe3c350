package armory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/weapon"
	"github.com/kasuganosora/modforge/model"
	"gorm.io/gorm"
)

// ErrNoLoadout is returned when a weapon has no persisted loadout.
var ErrNoLoadout = errors.New("armory: loadout not found")

// Store persists weapon loadouts.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Save writes the base profile and equipped mod IDs of w.
func (s *Store) Save(ctx context.Context, w *weapon.Weapon) error {
	profile, err := json.Marshal(w.Base())
	if err != nil {
		return fmt.Errorf("armory: encode profile: %w", err)
	}
	mods, err := json.Marshal(w.Loadout())
	if err != nil {
		return fmt.Errorf("armory: encode mods: %w", err)
	}
	version := w.Snapshot().Version

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Loadout
		err := tx.Where("weapon_id = ?", w.ID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.Loadout{
				WeaponID: w.ID,
				Owner:    w.Owner,
				Name:     w.Name,
				Profile:  profile,
				Mods:     mods,
				Version:  version,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&row).Updates(map[string]interface{}{
			"owner":   w.Owner,
			"name":    w.Name,
			"profile": profile,
			"mods":    mods,
			"version": version,
		}).Error
	})
}

// Load returns the loadout row of weaponID.
func (s *Store) Load(ctx context.Context, weaponID string) (*model.Loadout, error) {
	var row model.Loadout
	err := s.db.WithContext(ctx).Where("weapon_id = ?", weaponID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoLoadout
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// All returns every persisted loadout.
func (s *Store) All(ctx context.Context) ([]model.Loadout, error) {
	var rows []model.Loadout
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ByOwner returns the loadouts held by owner.
func (s *Store) ByOwner(ctx context.Context, owner string) ([]model.Loadout, error) {
	var rows []model.Loadout
	err := s.db.WithContext(ctx).Where("owner = ?", owner).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

// Delete removes the loadout of weaponID.
func (s *Store) Delete(ctx context.Context, weaponID string) error {
	return s.db.WithContext(ctx).Where("weapon_id = ?", weaponID).Delete(&model.Loadout{}).Error
}

// decode unpacks a persisted row into a profile and per-slot mod IDs.
func decode(row *model.Loadout) (weapon.Profile, map[mod.Slot][]string, error) {
	var p weapon.Profile
	if len(row.Profile) > 0 {
		if err := json.Unmarshal(row.Profile, &p); err != nil {
			return p, nil, fmt.Errorf("armory: decode profile %s: %w", row.WeaponID, err)
		}
	}
	mods := make(map[mod.Slot][]string)
	if len(row.Mods) > 0 {
		if err := json.Unmarshal(row.Mods, &mods); err != nil {
			return p, nil, fmt.Errorf("armory: decode mods %s: %w", row.WeaponID, err)
		}
	}
	if p.Name == "" {
		p.Name = row.Name
	}
	return p, mods, nil
}
