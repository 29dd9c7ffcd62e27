// Package store keeps the local snapshot of timers and the session
// identity in a BoltDB file.
package store

import (
	"cmp"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/osutil"
	"github.com/ayoisaiah/respawn/internal/room"
)

const (
	timerBucket    = "timers"
	identityBucket = "identity"

	keyUserID = "user_id"
	keyRoomID = "room_id"
	keyRole   = "role"
)

var errRespawnRunning = errors.New(
	"is respawn already running? Only one instance can be active at a time",
)

var _ DB = (*Client)(nil)

// RoomMembership is the room a session was last in.
type RoomMembership struct {
	RoomID string
	Role   room.Role
}

// Client is a BoltDB database client.
type Client struct {
	*bolt.DB
}

func (c *Client) SaveTimers(records []models.Record) error {
	return c.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(timerBucket))
		if err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}

		b, err := tx.CreateBucket([]byte(timerBucket))
		if err != nil {
			return err
		}

		for i := range records {
			value, err := json.Marshal(records[i])
			if err != nil {
				return err
			}

			if err := b.Put([]byte(records[i].ID), value); err != nil {
				return err
			}
		}

		return nil
	})
}

func (c *Client) LoadTimers() ([]models.Record, error) {
	var records []models.Record

	err := c.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(timerBucket)).ForEach(func(_, v []byte) error {
			var r models.Record

			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}

			records = append(records, r)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(records, func(a, b models.Record) int {
		return cmp.Or(
			a.StartedAt.Compare(b.StartedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})

	return records, nil
}

func (c *Client) UserID() (string, error) {
	var id string

	err := c.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(identityBucket))

		if v := b.Get([]byte(keyUserID)); len(v) > 0 {
			id = string(v)
			return nil
		}

		id = uuid.NewString()

		return b.Put([]byte(keyUserID), []byte(id))
	})

	return id, err
}

func (c *Client) SaveRoom(m RoomMembership) error {
	return c.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(identityBucket))

		if err := b.Put([]byte(keyRoomID), []byte(m.RoomID)); err != nil {
			return err
		}

		return b.Put([]byte(keyRole), []byte(m.Role))
	})
}

func (c *Client) Room() (RoomMembership, bool, error) {
	var m RoomMembership

	err := c.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(identityBucket))

		m.RoomID = string(b.Get([]byte(keyRoomID)))
		m.Role = room.Role(b.Get([]byte(keyRole)))

		return nil
	})

	return m, m.RoomID != "", err
}

func (c *Client) ClearRoom() error {
	return c.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(identityBucket))

		if err := b.Delete([]byte(keyRoomID)); err != nil {
			return err
		}

		return b.Delete([]byte(keyRole))
	})
}

// open creates or opens a database and locks it.
func openDB(pathToDB string) (*bolt.DB, error) {
	var fileMode fs.FileMode = 0o600

	if err := os.MkdirAll(filepath.Dir(pathToDB), osutil.DirPermission); err != nil {
		return nil, err
	}

	db, err := bolt.Open(
		pathToDB,
		fileMode,
		&bolt.Options{Timeout: 1 * time.Second},
	)
	if err != nil {
		if errors.Is(err, bolt.ErrDatabaseOpen) ||
			errors.Is(err, bolt.ErrTimeout) {
			return nil, errRespawnRunning
		}

		return nil, err
	}

	return db, nil
}

// NewClient returns a wrapper to a BoltDB connection.
func NewClient(dbPath string) (*Client, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	// Create the necessary buckets for storing data if they do not exist already
	err = db.Update(func(tx *bolt.Tx) error {
		_, err = tx.CreateBucketIfNotExists([]byte(timerBucket))
		if err != nil {
			return err
		}

		_, err = tx.CreateBucketIfNotExists([]byte(identityBucket))

		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Client{
		db,
	}, nil
}
