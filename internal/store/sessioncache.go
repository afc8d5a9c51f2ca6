package store

import (
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

const sessionBucket = "sessions"

// SessionCache is a local, embedded fallback snapshot of per-operator
// session state (component C8's persisted form). Postgres's sessions table
// remains authoritative; SessionCache exists only so an in-flight
// conversation survives a process restart before the next Postgres write,
// grounded on db/bolt's embedded KV wrapper.
type SessionCache struct {
	db *bolt.DB
}

// OpenSessionCache opens (creating if absent) the bbolt file at path.
func OpenSessionCache(path string) (*SessionCache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("sessioncache: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sessioncache: create bucket: %w", err)
	}
	return &SessionCache{db: db}, nil
}

// Put stores raw session JSON for userID, overwriting any prior snapshot.
func (c *SessionCache) Put(userID int64, stateJSON []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		return b.Put(userKey(userID), stateJSON)
	})
}

// Get returns the last snapshot for userID, or nil if none exists.
func (c *SessionCache) Get(userID int64) ([]byte, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		v := b.Get(userKey(userID))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Delete removes a userID's cached snapshot (used once Postgres confirms
// the session has returned to Idle).
func (c *SessionCache) Delete(userID int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		return b.Delete(userKey(userID))
	})
}

// Close releases the underlying bbolt file handle.
func (c *SessionCache) Close() error {
	return c.db.Close()
}

func userKey(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}
