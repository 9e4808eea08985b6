package notify

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"solana-marketplace/internal/domain"
)

var (
	bucketQueue = []byte("queue") // seq -> notification, delivery order
	bucketDead  = []byte("dead")  // seq -> notification that exhausted its attempts
	bucketIDs   = []byte("ids")   // notification id -> state, for dedup
)

// Dedup states.
const (
	statePending = "pending"
	stateSent    = "sent"
	stateDead    = "dead"
)

// Entry is a spooled notification with its queue position.
type Entry struct {
	Seq          uint64
	Notification *domain.Notification
}

// Spool is a durable notification queue in a bbolt file.
type Spool struct {
	db *bbolt.DB
}

// OpenSpool opens or creates the spool at path.
// The parent directory is created if it does not exist.
func OpenSpool(path string) (*Spool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("notify: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("notify: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketQueue, bucketDead, bucketIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notify: create buckets: %w", err)
	}
	return &Spool{db: db}, nil
}

// Close closes the underlying database.
func (s *Spool) Close() error { return s.db.Close() }

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// Put appends n unless a notification with the same id was ever spooled.
// It reports whether n was added.
func (s *Spool) Put(n *domain.Notification) (bool, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return false, fmt.Errorf("encode notification: %w", err)
	}

	added := false
	err = s.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(bucketIDs)
		if ids.Get([]byte(n.ID)) != nil {
			return nil
		}

		q := tx.Bucket(bucketQueue)
		seq, err := q.NextSequence()
		if err != nil {
			return err
		}
		if err := q.Put(seqKey(seq), data); err != nil {
			return err
		}
		added = true
		return ids.Put([]byte(n.ID), []byte(statePending))
	})
	if err != nil {
		return false, fmt.Errorf("notify: put: %w", err)
	}
	return added, nil
}

// Pending returns up to limit queued notifications in enqueue order.
func (s *Spool) Pending(limit int) ([]Entry, error) {
	return s.scan(bucketQueue, limit)
}

// Dead returns up to limit notifications that exhausted their attempts.
func (s *Spool) Dead(limit int) ([]Entry, error) {
	return s.scan(bucketDead, limit)
}

func (s *Spool) scan(bucket []byte, limit int) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var n domain.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return fmt.Errorf("decode notification %x: %w", k, err)
			}
			out = append(out, Entry{Seq: binary.BigEndian.Uint64(k), Notification: &n})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("notify: scan %s: %w", bucket, err)
	}
	return out, nil
}

// Ack removes a delivered entry from the queue.
func (s *Spool) Ack(e Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketQueue).Delete(seqKey(e.Seq)); err != nil {
			return err
		}
		return tx.Bucket(bucketIDs).Put([]byte(e.Notification.ID), []byte(stateSent))
	})
}

// Fail records a failed delivery. Once attempts reach maxAttempts the entry
// moves to the dead bucket. It reports whether the entry is now dead.
func (s *Spool) Fail(e Entry, cause error, maxAttempts int) (bool, error) {
	n := *e.Notification
	n.Attempts++
	n.LastError = cause.Error()
	dead := n.Attempts >= maxAttempts

	data, err := json.Marshal(&n)
	if err != nil {
		return false, fmt.Errorf("encode notification: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		q := tx.Bucket(bucketQueue)
		if !dead {
			return q.Put(seqKey(e.Seq), data)
		}
		if err := q.Delete(seqKey(e.Seq)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDead).Put(seqKey(e.Seq), data); err != nil {
			return err
		}
		return tx.Bucket(bucketIDs).Put([]byte(n.ID), []byte(stateDead))
	})
	if err != nil {
		return false, fmt.Errorf("notify: fail: %w", err)
	}
	*e.Notification = n
	return dead, nil
}
