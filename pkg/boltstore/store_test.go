package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochj23/webmush/pkg/gamedb"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func buildWorld(t *testing.T) *gamedb.Database {
	t.Helper()
	db := gamedb.NewDatabase()
	room, err := db.Create(gamedb.KindRoom, "Limbo", gamedb.Nothing, gamedb.Nothing)
	require.NoError(t, err)
	player, err := db.Create(gamedb.KindPlayer, "Wizard", gamedb.Nothing, room)
	require.NoError(t, err)
	require.NoError(t, db.SetFlag(player, gamedb.FlagWizard, true))
	require.NoError(t, db.SetAttr(player, "DESC", "A mighty wizard."))
	_, err = db.Create(gamedb.KindThing, "Orb", player, room)
	require.NoError(t, err)
	return db
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	db := buildWorld(t)

	require.NoError(t, s.SaveAll(db))

	loaded, err := s.LoadAll()
	require.NoError(t, err)

	assert.Equal(t, db.Size(), loaded.Size())
	assert.Equal(t, db.NextRef(), loaded.NextRef())

	player := loaded.ParseRef("#1")
	require.NotEqual(t, gamedb.Nothing, player)
	assert.Equal(t, "Wizard", loaded.Name(player))
	assert.True(t, loaded.HasFlag(player, gamedb.FlagWizard))

	desc, ok := loaded.GetAttr(player, "DESC")
	require.True(t, ok)
	assert.Equal(t, "A mighty wizard.", desc)
}

func TestDestroyedRefsSurviveRestart(t *testing.T) {
	s := openTestStore(t)
	db := buildWorld(t)

	orb := db.ParseRef("#2")
	require.NotEqual(t, gamedb.Nothing, orb)
	require.NoError(t, db.Destroy(orb))

	require.NoError(t, s.SaveAll(db))
	require.NoError(t, s.DeleteObject(orb))

	loaded, err := s.LoadAll()
	require.NoError(t, err)

	assert.Equal(t, gamedb.Nothing, loaded.Resolve(orb))
	next, err := loaded.Create(gamedb.KindThing, "Replacement", loaded.ParseRef("#1"), loaded.ParseRef("#0"))
	require.NoError(t, err)
	assert.Greater(t, int(next), int(orb), "destroyed refs must never be reissued")
}

func TestPlayerIndex(t *testing.T) {
	s := openTestStore(t)
	db := buildWorld(t)
	require.NoError(t, s.SaveAll(db))

	ref, ok := s.LookupPlayer("wizard")
	require.True(t, ok)
	assert.Equal(t, db.ParseRef("#1"), ref)

	_, ok = s.LookupPlayer("nobody")
	assert.False(t, ok)

	// Rename keeps the index current.
	player := db.ParseRef("#1")
	require.NoError(t, db.SetName(player, "Merlin"))
	snap, ok := db.Snapshot(player)
	require.True(t, ok)
	require.NoError(t, s.UpdatePlayerIndex(snap, "Wizard"))

	_, ok = s.LookupPlayer("wizard")
	assert.False(t, ok)
	ref, ok = s.LookupPlayer("merlin")
	require.True(t, ok)
	assert.Equal(t, player, ref)
}

func TestWriteThroughSingleObject(t *testing.T) {
	s := openTestStore(t)
	db := buildWorld(t)
	require.NoError(t, s.SaveAll(db))

	player := db.ParseRef("#1")
	require.NoError(t, db.SetAttr(player, "HP", "50"))
	snap, ok := db.Snapshot(player)
	require.True(t, ok)
	require.NoError(t, s.PutObject(snap))

	loaded, err := s.LoadAll()
	require.NoError(t, err)
	hp, ok := loaded.GetAttr(player, "HP")
	require.True(t, ok)
	assert.Equal(t, "50", hp)
}

func TestHasData(t *testing.T) {
	s := openTestStore(t)
	assert.False(t, s.HasData())

	require.NoError(t, s.SaveAll(buildWorld(t)))
	assert.True(t, s.HasData())
}

func TestBackup(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveAll(buildWorld(t)))

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, s.Backup(backupPath))

	restored, err := Open(backupPath, nil)
	require.NoError(t, err)
	defer restored.Close()

	loaded, err := restored.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Size())
}
