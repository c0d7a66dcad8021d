// Package undo implements the append-only undo log. Records live in a
// bbolt file beside the SQLite database, keyed by a monotonically
// increasing sequence number, encoded with msgpack, and checksummed with
// xxhash. Records are created only by non-batch transaction commits,
// never mutated, and consumed by the host's undo/redo feature.
package undo

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/rootsmith/lineage/pkg/types"
)

var (
	recordsBucket = []byte("records")
	txnsBucket    = []byte("txns")

	// ErrCorrupted is returned by Scan when a record fails its checksum.
	ErrCorrupted = fmt.Errorf("corrupted undo record")
)

// Record is one before/after snapshot of a single object change. Before
// is nil for inserts, After is nil for deletes; both are canonical
// document encodings.
type Record struct {
	Seq         uint64          `msgpack:"-"`
	TxnID       uint64          `msgpack:"txn"`
	Description string          `msgpack:"desc"`
	Kind        string          `msgpack:"kind"`
	Op          types.Operation `msgpack:"op"`
	Handle      string          `msgpack:"handle"`
	Before      []byte          `msgpack:"before"`
	After       []byte          `msgpack:"after"`
	Time        int64           `msgpack:"time"`
	Checksum    uint64          `msgpack:"sum"`
}

func (r *Record) computeChecksum() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(r.Kind)
	_, _ = h.WriteString(string(r.Op))
	_, _ = h.WriteString(r.Handle)
	_, _ = h.Write(r.Before)
	_, _ = h.Write(r.After)
	return h.Sum64()
}

// Log is an open undo log file.
type Log struct {
	db *bbolt.DB
}

// Open opens or creates the undo log at path.
func Open(path string) (*Log, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening undo log: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(txnsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing undo log: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the log file.
func (l *Log) Close() error {
	return l.db.Close()
}

// Append writes one transaction's records in a single atomic update and
// assigns them consecutive sequence numbers. The transaction id groups
// records for the redo feature; the description is the human-readable
// name the transaction was begun with.
func (l *Log) Append(txnID uint64, description string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().Unix()
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		for i := range recs {
			rec := recs[i]
			rec.TxnID = txnID
			rec.Description = description
			if rec.Time == 0 {
				rec.Time = now
			}
			rec.Checksum = rec.computeChecksum()
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating undo sequence: %w", err)
			}
			data, err := msgpack.Marshal(&rec)
			if err != nil {
				return fmt.Errorf("encoding undo record: %w", err)
			}
			if err := b.Put(seqKey(seq), data); err != nil {
				return fmt.Errorf("appending undo record: %w", err)
			}
		}
		return nil
	})
}

// NextTxnID allocates the next transaction id from a dedicated counter.
func (l *Log) NextTxnID() (uint64, error) {
	var id uint64
	err := l.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = tx.Bucket(txnsBucket).NextSequence()
		return err
	})
	return id, err
}

// Len returns the number of records in the log.
func (l *Log) Len() (int, error) {
	var n int
	err := l.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Scan calls fn for every record in sequence order, verifying checksums.
// Returning an error from fn stops the scan.
func (l *Log) Scan(fn func(Record) error) error {
	return l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec Record
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding undo record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			rec.Seq = binary.BigEndian.Uint64(k)
			if rec.computeChecksum() != rec.Checksum {
				return fmt.Errorf("%w: sequence %d", ErrCorrupted, rec.Seq)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}
