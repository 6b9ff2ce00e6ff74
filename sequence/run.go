package sequence

import "github.com/mtkira/weavetext/opid"

// run is one maximal mergeable span of the sequence: consecutive counters
// from a single site, inserted between the same pair of origins, either
// all alive or all tombstoned by the same delete.
//
// run implements rletree.Element[run]. Its Len reports 0 once tombstoned,
// which is what makes tombstones invisible to the tree's position-indexed
// API while keeping them addressable through the identifier-based one —
// see rletree's package doc.
type run struct {
	IDSpan                  opid.OpIdSpan
	OriginLeft, OriginRight opid.OpId
	Content                 string
	Tombstoned              bool
	DeletedBy               opid.OpId

	// maxBytes caps how large Content may grow through MergeWith, mirroring
	// the Sequence that minted this run (max_leaf_run_bytes). <= 0 means
	// unbounded. Every run produced from this one via MergeWith or
	// SliceElement carries the same cap forward.
	maxBytes int
}

// width is the run's full atom count, tombstoned or not. Unlike Len, it
// never collapses to zero; it's what identifier-based placement and
// splitting measure offsets against.
func (r run) width() int { return int(r.IDSpan.Len) }

func (r run) Len() int {
	if r.Tombstoned {
		return 0
	}
	return len(r.Content)
}

func (r run) CanMergeWith(other run) bool {
	if r.maxBytes > 0 && len(r.Content)+len(other.Content) > r.maxBytes {
		return false
	}
	return r.Tombstoned == other.Tombstoned &&
		r.DeletedBy == other.DeletedBy &&
		r.IDSpan.Adjacent(other.IDSpan) &&
		r.OriginRight == other.IDSpan.First() &&
		other.OriginLeft == r.IDSpan.Last()
}

func (r run) MergeWith(other run) run {
	return run{
		IDSpan:      opid.OpIdSpan{Site: r.IDSpan.Site, Start: r.IDSpan.Start, Len: r.IDSpan.Len + other.IDSpan.Len},
		OriginLeft:  r.OriginLeft,
		OriginRight: other.OriginRight,
		Content:     r.Content + other.Content,
		Tombstoned:  r.Tombstoned,
		DeletedBy:   r.DeletedBy,
		maxBytes:    r.maxBytes,
	}
}

// SliceElement splits the run at atom offsets [from, to) of its own
// width. The pieces' origins point at the neighboring atom within the
// original run, which is exactly what that atom's origin_left/right
// always were: for atoms minted together in one insertion, each one's
// implicit origin is simply the atom immediately before it.
func (r run) SliceElement(from, to int) run {
	sub := run{
		IDSpan:     r.IDSpan.Sub(from, to),
		Tombstoned: r.Tombstoned,
		DeletedBy:  r.DeletedBy,
		maxBytes:   r.maxBytes,
	}
	if from == 0 {
		sub.OriginLeft = r.OriginLeft
	} else {
		sub.OriginLeft = r.IDSpan.At(from - 1)
	}
	if to == r.width() {
		sub.OriginRight = r.OriginRight
	} else {
		sub.OriginRight = r.IDSpan.At(to)
	}
	if !r.Tombstoned {
		sub.Content = r.Content[from:to]
	}
	return sub
}

// atomID returns the OpId of the atom at offset within the run.
func (r run) atomID(offset int) opid.OpId { return r.IDSpan.At(offset) }

// atomOrigins returns the origin_left/origin_right of the single atom at
// offset within the run, derived the same way SliceElement derives them
// for a split-off piece.
func (r run) atomOrigins(offset int) (left, right opid.OpId) {
	if offset == 0 {
		left = r.OriginLeft
	} else {
		left = r.IDSpan.At(offset - 1)
	}
	if offset == r.width()-1 {
		right = r.OriginRight
	} else {
		right = r.IDSpan.At(offset + 1)
	}
	return left, right
}
