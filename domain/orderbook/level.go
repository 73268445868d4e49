package orderbook

// EntryRef is an opaque handle to a resting entry inside a Level. It
// stays valid until the entry is removed, after which level operations
// on it report failure instead of panicking.
type EntryRef = any

// Level is the resting-order queue at one exact price for one side:
// strict arrival order, concurrent add/remove/partial-decrement, and
// an aggregate visible quantity readable without blocking writers.
//
// The book treats the level as an externally supplied capability and
// only ever creates instances through its LevelFactory; package
// pricelevel provides the default implementation.
type Level interface {
	Price() int64

	// Add appends the quantity in arrival order and returns the entry
	// handle used for fast removal.
	Add(orderID uint64, qty int64) EntryRef

	// Remove unlinks the entry and returns its remaining quantity.
	// ok is false when the entry is already gone or is claimed by an
	// in-flight all-or-nothing commit.
	Remove(ref EntryRef) (qty int64, ok bool)

	// Unlinked reports whether the entry has left the queue for good.
	// A failed Remove on an entry that is not unlinked means the entry
	// is claimed by a reservation and Remove may be retried once the
	// reservation resolves.
	Unlinked(ref EntryRef) bool

	// Reduce shrinks the entry's remaining quantity in place, keeping
	// its queue position. newQty must be positive and strictly smaller
	// than the current remaining.
	Reduce(ref EntryRef, newQty int64) bool

	// Consume fills up to qty from the entry. removed reports that the
	// entry was exhausted and unlinked.
	Consume(ref EntryRef, qty int64) (filled int64, removed bool)

	// Reserve claims up to need quantity from the head of the queue
	// for a later all-or-nothing commit and returns the amount
	// claimed. Claimed quantity cannot be cancelled out from under the
	// commit.
	Reserve(need int64) int64

	// CommitReserved converts every claim into a fill, in arrival
	// order. removed reports that the entry was exhausted.
	CommitReserved(fn func(orderID uint64, qty int64, removed bool))

	// ReleaseReserved drops all claims without filling anything.
	ReleaseReserved()

	TotalQty() int64
	Count() int
	Empty() bool

	// Ascend visits live entries in arrival order until fn returns
	// false. The traversal is restartable and skips entries removed
	// concurrently.
	Ascend(fn func(ref EntryRef, orderID uint64, remaining int64) bool)
}

// LevelFactory creates the Level for a freshly occupied price.
type LevelFactory func(price int64) Level
