package model_test

import (
	"testing"
	"time"

	"github.com/kasuganosora/modforge/model"
	"github.com/kasuganosora/modforge/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	lo := &model.Loadout{
		WeaponID: "3f1c0e8a-0000-4000-8000-000000000001",
		Owner:    "player-1",
		Name:     "rifle",
		Profile:  datatypes.JSON(`{"name":"rifle"}`),
		Mods:     datatypes.JSON(`{"barrel":["hot_barrel"]}`),
		Version:  2,
	}
	require.NoError(t, db.Create(lo).Error)

	var found model.Loadout
	require.NoError(t, db.First(&found, "weapon_id = ?", lo.WeaponID).Error)
	assert.Equal(t, "player-1", found.Owner)
	assert.JSONEq(t, `{"barrel":["hot_barrel"]}`, string(found.Mods))

	al := &model.AuditLog{
		TraceID: "trace-001", Action: "equip", WeaponID: lo.WeaponID,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(al).Error)
	assert.Greater(t, al.ID, int64(0))
}
