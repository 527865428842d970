package handle

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/corelog"
)

// ErrTableFull is returned by Open when every slot is in use.
var ErrTableFull = errors.New("handle: table full")

// ErrStaleRef is returned when Ref no longer names a live handle (already
// closed, or the slot was reused by a later Open).
var ErrStaleRef = errors.New("handle: stale reference")

// Ref is an opaque reference to one open handle. The id disambiguates a
// slot that was closed and reopened between the caller's last use and
// now; the slot locates the handle, and the id is compared only to detect
// a stale Ref and is logged as the handle_id field.
type Ref struct {
	slot int
	id   uuid.UUID
}

type record struct {
	used        bool
	id          uuid.UUID
	owner       Owner
	kind        Kind
	displayPath string
	h           Handle
}

// Table is the fixed-size handle registry (spec.md §4.9). Not safe for
// concurrent use, matching spec.md §5's single-threaded model.
type Table struct {
	slots []record
	free  []int
}

// NewTable creates a registry with room for capacity concurrently open
// handles.
func NewTable(capacity int) *Table {
	t := &Table{slots: make([]record, capacity)}
	t.free = make([]int, capacity)
	for i := 0; i < capacity; i++ {
		t.free[i] = capacity - 1 - i
	}
	return t
}

// Open registers h under owner/kind/displayPath and returns its Ref.
func (t *Table) Open(owner Owner, kind Kind, displayPath string, h Handle) (Ref, error) {
	if len(t.free) == 0 {
		return Ref{}, ErrTableFull
	}
	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	id := uuid.New()
	t.slots[idx] = record{used: true, id: id, owner: owner, kind: kind, displayPath: displayPath, h: h}
	corelog.For(corelog.Handle).WithField("handle_id", id).WithField("kind", kind.String()).
		WithField("owner", owner.String()).WithField("path", displayPath).Debug("handle opened")
	return Ref{slot: idx, id: id}, nil
}

// Get resolves ref to its live Handle.
func (t *Table) Get(ref Ref) (Handle, error) {
	if ref.slot < 0 || ref.slot >= len(t.slots) {
		return nil, ErrStaleRef
	}
	r := &t.slots[ref.slot]
	if !r.used || r.id != ref.id {
		return nil, ErrStaleRef
	}
	return r.h, nil
}

// Close closes and deregisters ref's handle.
func (t *Table) Close(ref Ref) error {
	if ref.slot < 0 || ref.slot >= len(t.slots) {
		return ErrStaleRef
	}
	r := &t.slots[ref.slot]
	if !r.used || r.id != ref.id {
		return ErrStaleRef
	}
	err := r.h.Close()
	corelog.For(corelog.Handle).WithField("handle_id", r.id).WithField("kind", r.kind.String()).
		Debug("handle closed")
	*r = record{}
	t.free = append(t.free, ref.slot)
	return err
}

// CloseAllForOwner forcibly closes every handle owned by owner, logging a
// warning per handle to contain leaks at module shutdown (spec.md §4.9).
// It returns the number of handles closed.
func (t *Table) CloseAllForOwner(owner Owner) int {
	n := 0
	for i := range t.slots {
		r := &t.slots[i]
		if !r.used || r.owner != owner {
			continue
		}
		corelog.For(corelog.Handle).WithField("handle_id", r.id).WithField("kind", r.kind.String()).
			WithField("path", r.displayPath).Warn("forcibly closing leaked handle at shutdown")
		_ = r.h.Close()
		*r = record{}
		t.free = append(t.free, i)
		n++
	}
	return n
}

// Len returns the number of currently open handles.
func (t *Table) Len() int {
	return len(t.slots) - len(t.free)
}
