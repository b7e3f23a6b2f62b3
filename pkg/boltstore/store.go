// Package boltstore persists the world database in a bbolt file. The
// live game runs from the in-memory gamedb; the store is write-through
// for single-object changes and supports full save/load at boot and
// checkpoint time.
package boltstore

import (
	"fmt"
	"os"
	"strings"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/kochj23/webmush/pkg/gamedb"
)

// Store wraps a bbolt database file.
type Store struct {
	bolt *bbolt.DB
	log  *zap.Logger
}

// Open opens or creates a bbolt database file and ensures all buckets
// exist.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketObjects, bucketPlayers, bucketDestroyed} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{bolt: db, log: log}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// PutObject persists a single object (write-through).
func (s *Store) PutObject(obj *gamedb.Object) error {
	data, err := encodeObject(obj)
	if err != nil {
		return fmt.Errorf("boltstore: encode object #%d: %w", obj.Ref, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketObjects).Put(refToKey(obj.Ref), data); err != nil {
			return err
		}
		if obj.Kind == gamedb.KindPlayer {
			return tx.Bucket(bucketPlayers).Put([]byte(strings.ToLower(obj.Name)), refToKey(obj.Ref))
		}
		return nil
	})
}

// DeleteObject removes an object and records its ref as destroyed so
// it is never reissued after a restart.
func (s *Store) DeleteObject(ref gamedb.DBRef) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketObjects).Delete(refToKey(ref)); err != nil {
			return err
		}
		return tx.Bucket(bucketDestroyed).Put(refToKey(ref), []byte{1})
	})
}

// LookupPlayer resolves a player name through the secondary index.
func (s *Store) LookupPlayer(name string) (gamedb.DBRef, bool) {
	ref := gamedb.Nothing
	s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketPlayers).Get([]byte(strings.ToLower(name))); v != nil {
			ref = keyToRef(v)
		}
		return nil
	})
	return ref, ref != gamedb.Nothing
}

// UpdatePlayerIndex maintains the player name→ref secondary index. A
// non-empty oldName drops the stale entry first.
func (s *Store) UpdatePlayerIndex(obj *gamedb.Object, oldName string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPlayers)
		if oldName != "" {
			b.Delete([]byte(strings.ToLower(oldName)))
		}
		if obj.Kind == gamedb.KindPlayer {
			return b.Put([]byte(strings.ToLower(obj.Name)), refToKey(obj.Ref))
		}
		return nil
	})
}

// SaveAll checkpoints the entire in-memory database: every live object,
// the destroyed-ref set, and the allocation cursor.
func (s *Store) SaveAll(db *gamedb.Database) error {
	refs := db.Refs()
	const batchSize = 1000
	count := 0
	for start := 0; start < len(refs); start += batchSize {
		end := start + batchSize
		if end > len(refs) {
			end = len(refs)
		}
		err := s.bolt.Update(func(tx *bbolt.Tx) error {
			objects := tx.Bucket(bucketObjects)
			players := tx.Bucket(bucketPlayers)
			for _, ref := range refs[start:end] {
				obj, ok := db.Snapshot(ref)
				if !ok {
					continue
				}
				data, err := encodeObject(obj)
				if err != nil {
					return fmt.Errorf("encode #%d: %w", ref, err)
				}
				if err := objects.Put(refToKey(ref), data); err != nil {
					return err
				}
				if obj.Kind == gamedb.KindPlayer {
					if err := players.Put([]byte(strings.ToLower(obj.Name)), refToKey(ref)); err != nil {
						return err
					}
				}
				count++
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("boltstore: save objects: %w", err)
		}
	}

	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if err := b.Put(keyVersion, intToKey(FormatVersion)); err != nil {
			return err
		}
		return b.Put(keyNextRef, intToKey(int(db.NextRef())))
	})
	if err != nil {
		return fmt.Errorf("boltstore: save meta: %w", err)
	}

	s.log.Info("database checkpoint written",
		zap.Int("objects", count),
		zap.Int("next_ref", int(db.NextRef())))
	return nil
}

// LoadAll reads the entire bbolt file into a fresh in-memory database.
func (s *Store) LoadAll() (*gamedb.Database, error) {
	db := gamedb.NewDatabase()
	count := 0

	err := s.bolt.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
			obj, err := decodeObject(v)
			if err != nil {
				return fmt.Errorf("decode object %d: %w", keyToRef(k), err)
			}
			db.Put(obj)
			count++
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket(bucketDestroyed).ForEach(func(k, _ []byte) error {
			db.MarkDestroyed(keyToRef(k))
			return nil
		}); err != nil {
			return err
		}

		if v := tx.Bucket(bucketMeta).Get(keyNextRef); v != nil {
			db.SetNextRef(gamedb.DBRef(keyToInt(v)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: load: %w", err)
	}

	s.log.Info("database loaded",
		zap.Int("objects", count),
		zap.Int("next_ref", int(db.NextRef())))
	return db, nil
}

// HasData reports whether the file contains any objects.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketObjects).Stats().KeyN > 0 {
			hasData = true
		}
		return nil
	})
	return hasData
}

// Backup creates a hot snapshot of the bbolt file using tx.WriteTo.
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		if _, err := tx.WriteTo(f); err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		s.log.Info("backup written", zap.String("path", path))
		return nil
	})
}
