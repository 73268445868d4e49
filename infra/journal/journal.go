// Package journal is the durable outbox between the matching engine
// and the outside world. Every event the engine emits is written here
// first, keyed by its sequence number, and drained to the broker by
// the broadcaster. Records move NEW → SENT → ACKED and are deleted
// once acked, so a crash between engine and broker never loses or
// reorders an event.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Kind distinguishes what the payload encodes.
type Kind uint8

const (
	KindTrade Kind = iota
	KindOrder
	KindBook
)

type Record struct {
	Seq         uint64
	Kind        Kind
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [kind:1][state:1][retries:4][lastAttempt:8][payload:rest]
const headerLen = 1 + 1 + 4 + 8

func encodeRecord(r Record) []byte {
	buf := make([]byte, headerLen+len(r.Payload))
	buf[0] = byte(r.Kind)
	buf[1] = byte(r.State)
	binary.BigEndian.PutUint32(buf[2:6], r.Retries)
	binary.BigEndian.PutUint64(buf[6:14], uint64(r.LastAttempt))
	copy(buf[headerLen:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < headerLen {
		return Record{}, errors.New("journal: record too short")
	}
	payload := make([]byte, len(b)-headerLen)
	copy(payload, b[headerLen:])
	return Record{
		Seq:         seq,
		Kind:        Kind(b[0]),
		State:       State(b[1]),
		Retries:     binary.BigEndian.Uint32(b[2:6]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[6:14])),
		Payload:     payload,
	}, nil
}

// -------------------- Journal --------------------

type Journal struct {
	db    *pebble.DB
	clock func() int64
}

type Option func(*Journal)

// WithClock overrides the attempt timestamp source.
func WithClock(fn func() int64) Option {
	return func(j *Journal) { j.clock = fn }
}

func Open(dir string, opts ...Option) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db, clock: func() int64 { return 0 }}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// -------------------- API --------------------

// Append inserts a new outbox entry in state NEW. Seq is the engine
// sequence of the event; appends with a duplicate seq overwrite,
// which is harmless because the payload is deterministic per seq.
func (j *Journal) Append(seq uint64, kind Kind, payload []byte) error {
	rec := Record{
		Seq:     seq,
		Kind:    kind,
		State:   StateNew,
		Payload: payload,
	}
	return j.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// MarkSent flips a record to SENT before the publish attempt.
func (j *Journal) MarkSent(seq uint64) error {
	return j.transition(seq, StateSent)
}

// MarkAcked flips a record to ACKED after the broker confirmed it.
func (j *Journal) MarkAcked(seq uint64) error {
	return j.transition(seq, StateAcked)
}

// MarkFailed records a failed publish attempt and bumps the retry
// counter.
func (j *Journal) MarkFailed(seq uint64) error {
	return j.transition(seq, StateFailed)
}

func (j *Journal) transition(seq uint64, state State) error {
	rec, err := j.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.LastAttempt = j.clock()
	if state == StateFailed {
		rec.Retries++
	}
	return j.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// Delete removes ACKED records (cleanup).
func (j *Journal) Delete(seq uint64) error {
	return j.db.Delete(keyFor(seq), pebble.Sync)
}

// Get returns the current record for a sequence.
func (j *Journal) Get(seq uint64) (Record, error) {
	val, closer, err := j.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

// -------------------- Scan --------------------

// ScanPending iterates NEW, SENT, and FAILED records in sequence
// order. SENT records are included because a crash after MarkSent but
// before the broker ack must be retried; downstream dedupes by seq.
func (j *Journal) ScanPending(fn func(rec Record) error) error {
	return j.scan(func(rec Record) error {
		if rec.State == StateAcked {
			return nil
		}
		return fn(rec)
	})
}

// ScanByState iterates all records in the given state, in sequence
// order.
func (j *Journal) ScanByState(state State, fn func(rec Record) error) error {
	return j.scan(func(rec Record) error {
		if rec.State != state {
			return nil
		}
		return fn(rec)
	})
}

// MaxSeq returns the highest journaled sequence, or 0 when empty.
// Used to reseed the sequencer on recovery.
func (j *Journal) MaxSeq() (uint64, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	seq, err := parseKey(iter.Key())
	if err != nil {
		return 0, err
	}
	return seq, iter.Error()
}

func (j *Journal) scan(fn func(rec Record) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "event/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(b[len(keyPrefix):]), "%d", &seq)
	return seq, err
}
