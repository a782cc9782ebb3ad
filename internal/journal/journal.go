// Package journal keeps a persistent log of applied renames in a bbolt file.
//
// The database is opened per operation so that `history` can read the log
// while a watcher in another process keeps appending to it.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultFilename is the journal file name inside the config dir.
const DefaultFilename = "journal.db"

const renamesBucket = "renames"

var (
	ErrNilEntry       = errors.New("journal entry is nil")
	ErrBucketNotFound = errors.New("journal bucket not found")
	ErrBusy           = errors.New("journal is locked by another process")
)

// Entry is one applied rename.
type Entry struct {
	ID      uint64    `json:"id"`
	Time    time.Time `json:"time"`
	Dir     string    `json:"dir"`
	OldName string    `json:"old_name"`
	NewName string    `json:"new_name"`
	Source  string    `json:"source"`
}

// Journal appends and reads rename entries.
type Journal struct {
	path    string
	timeout time.Duration
}

// Open prepares the journal at path, creating the file and bucket if needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}
	j := &Journal{path: path, timeout: 2 * time.Second}

	err := j.with(false, func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists([]byte(renamesBucket)); err != nil {
				return fmt.Errorf("failed to create bucket: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	return j, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Record appends e, assigning its ID. A zero Time is set to now.
func (j *Journal) Record(e *Entry) error {
	if e == nil {
		return ErrNilEntry
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	return j.with(false, func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			bucket, err := tx.CreateBucketIfNotExists([]byte(renamesBucket))
			if err != nil {
				return err
			}
			id, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			e.ID = id

			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			return bucket.Put(itob(id), data)
		})
	})
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	var entries []Entry

	err := j.with(true, func(db *bbolt.DB) error {
		return db.View(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket([]byte(renamesBucket))
			if bucket == nil {
				return ErrBucketNotFound
			}

			c := bucket.Cursor()
			for k, v := c.Last(); k != nil; k, v = c.Prev() {
				var e Entry
				if err := json.Unmarshal(v, &e); err != nil {
					return fmt.Errorf("decoding entry %d: %w", binary.BigEndian.Uint64(k), err)
				}
				entries = append(entries, e)
				if limit > 0 && len(entries) >= limit {
					break
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *Journal) with(readOnly bool, fn func(*bbolt.DB) error) error {
	db, err := bbolt.Open(j.path, 0o600, &bbolt.Options{Timeout: j.timeout, ReadOnly: readOnly})
	if errors.Is(err, bbolt.ErrTimeout) {
		return ErrBusy
	}
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
