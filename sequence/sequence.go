// Package sequence implements the text container's internal state: a
// tree-ordered set of immutable character runs keyed by causal
// identifiers, supporting local edits by visible index and remote edits
// by identifier, with deterministic placement of concurrent inserts.
//
// Grounded on crdt.CausalTree's InsertChar/DeleteChar (local, index-
// addressed) and walkCausalBlock/Merge (remote, identity-addressed),
// reworked from a flat weave array onto an rletree.Tree so the position
// index stays a tree instead of a linear scan.
package sequence

import (
	"strings"
	"unicode/utf8"

	"github.com/mtkira/weavetext/opid"
	"github.com/mtkira/weavetext/rletree"
)

// Sequence is one text container's CRDT state.
type Sequence struct {
	tree     *rletree.Tree[run]
	maxBytes int
}

// New returns an empty sequence whose RLE tree uses the given fanout
// (tree_fanout in the engine's Config; see replica) and whose live runs
// refuse to merge past maxBytes bytes (max_leaf_run_bytes). maxBytes <= 0
// means unbounded.
func New(fanout, maxBytes int) *Sequence {
	return &Sequence{tree: rletree.New[run](fanout), maxBytes: maxBytes}
}

// Len returns the visible length in bytes.
func (s *Sequence) Len() int { return s.tree.Len() }

// GetValue renders the sequence's current visible text.
func (s *Sequence) GetValue() string {
	var sb strings.Builder
	s.tree.ForEachRun(func(r run) bool {
		if !r.Tombstoned {
			sb.WriteString(r.Content)
		}
		return true
	})
	return sb.String()
}

// RuneBoundary reports whether pos falls on a UTF-8 rune boundary of the
// visible text. Position 0 and Len() are always boundaries. Content is
// only ever split at positions a caller has already passed through here,
// so a live run's bytes never get sliced mid-rune.
func (s *Sequence) RuneBoundary(pos int) bool {
	if pos <= 0 || pos >= s.Len() {
		return true
	}
	elem, offset, err := s.tree.Get(pos)
	if err != nil {
		return false
	}
	return utf8.RuneStart(elem.Content[offset])
}

// PlanInsert computes the origin pair a local insertion at visible
// position pos would use, without mutating the sequence. pos == Len() is
// a valid append position.
func (s *Sequence) PlanInsert(pos int) (originLeft, originRight opid.OpId, err error) {
	if pos < 0 || pos > s.Len() {
		return opid.Nil, opid.Nil, ErrOutOfBounds
	}
	if pos > 0 {
		elem, offset, getErr := s.tree.Get(pos - 1)
		if getErr != nil {
			return opid.Nil, opid.Nil, getErr
		}
		originLeft = elem.atomID(offset)
	}
	if pos < s.Len() {
		elem, offset, getErr := s.tree.Get(pos)
		if getErr != nil {
			return opid.Nil, opid.Nil, getErr
		}
		originRight = elem.atomID(offset)
	}
	return originLeft, originRight, nil
}

// ApplyInsert places a run of newly-minted or remotely-received content
// between originLeft and originRight, resolving concurrent placement
// with the same algorithm whether the insert originated locally (right
// after PlanInsert) or arrived via Import: seek just past originLeft,
// then walk rightward over concurrent peers, stopping at the first peer
// this insertion's (site, first_counter) sorts before, at origin_right,
// or at a non-peer.
//
// A peer is resolved a whole run at a time, not atom by atom: a run
// that shares our origin_left was itself minted as one atomic op (or is
// the tail end of one, when seekPastOrigin lands mid-run), so losing
// the tie-break against its first atom means losing against all of it,
// and the walk skips straight to the run after it. Comparing per
// interior atom instead — the first attempt at this — breaks a multi-
// character peer in two at the tie-break point instead of placing the
// newcomer on whichever side of the whole run it belongs on.
func (s *Sequence) ApplyInsert(span opid.OpIdSpan, originLeft, originRight opid.OpId, content string) {
	newRun := run{IDSpan: span, OriginLeft: originLeft, OriginRight: originRight, Content: content, maxBytes: s.maxBytes}
	newFirst := span.First()

	cur, offset, haveCur := s.seekPastOrigin(originLeft)

	for haveCur {
		e := s.tree.At(cur)
		atomID := e.atomID(offset)
		if atomID == originRight {
			break
		}

		var isPeer bool
		if offset == 0 {
			isPeer = e.OriginLeft == originLeft
		} else {
			// Only reachable on the first iteration, when seekPastOrigin
			// landed inside a run: this atom's true predecessor is
			// originLeft by construction, so it's always a peer here;
			// a mismatched origin_right means a different, narrower
			// insertion already claimed the spot right after it.
			left, right := e.atomOrigins(offset)
			isPeer = left == originLeft && right == originRight
		}
		if !isPeer {
			break
		}
		if newFirst.Compare(atomID) < 0 {
			break // newcomer sorts before this peer: insert here
		}

		nxt, ok := s.tree.Next(cur)
		if !ok {
			haveCur = false
			break
		}
		cur, offset = nxt, 0
	}

	if haveCur {
		s.tree.InsertAt(cur, offset, s.tree.At(cur).width(), newRun)
	} else {
		_ = s.tree.Insert(s.tree.Len(), newRun)
	}
}

// seekPastOrigin returns the location of the atom immediately to the
// right of origin (or the first atom in the tree, if origin is nil), or
// haveCur=false if there's nothing there (origin was the tree's last
// atom, or the tree is empty).
func (s *Sequence) seekPastOrigin(origin opid.OpId) (loc rletree.Location, offset int, haveCur bool) {
	if origin.IsNil() {
		loc, ok := s.tree.First()
		return loc, 0, ok
	}
	loc, ok := s.tree.Find(func(r run) bool { return r.IDSpan.Contains(origin) })
	if !ok {
		// Caller's causal dependency guarantee was violated; nothing
		// sensible to do but drop the insert at the document's end.
		return rletree.Location{}, 0, false
	}
	e := s.tree.At(loc)
	off := int(origin.Counter - e.IDSpan.Start)
	if off+1 < e.width() {
		return loc, off + 1, true
	}
	nxt, ok := s.tree.Next(loc)
	return nxt, 0, ok
}

// PlanDelete computes the contiguous id_spans currently covering the
// visible range [pos, pos+length), clamped per the façade's delete
// contract: a no-op on an empty sequence, otherwise clamped to
// [pos, min(pos+length, Len())). It does not mutate the sequence; the
// caller mints a deleter Change from the returned total width, then
// applies each target through ApplyDelete.
func (s *Sequence) PlanDelete(pos, length int) ([]opid.OpIdSpan, error) {
	if s.Len() == 0 {
		return nil, nil
	}
	if pos < 0 || pos > s.Len() {
		return nil, ErrOutOfBounds
	}
	end := pos + length
	if end > s.Len() {
		end = s.Len()
	}
	var targets []opid.OpIdSpan
	for from := pos; from < end; {
		elem, offset, err := s.tree.Get(from)
		if err != nil {
			return nil, err
		}
		avail := elem.width() - offset
		take := end - from
		if take > avail {
			take = avail
		}
		span := opid.OpIdSpan{Site: elem.IDSpan.Site, Start: elem.IDSpan.Start + opid.Counter(offset), Len: uint32(take)}
		if n := len(targets); n > 0 && targets[n-1].Adjacent(span) {
			targets[n-1].Len += span.Len
		} else {
			targets = append(targets, span)
		}
		from += take
	}
	return targets, nil
}

// ApplyDelete flips every alive atom within target to tombstoned,
// attributing the tombstone to by. Splits boundary runs as needed.
// Idempotent: atoms already tombstoned are left untouched, so
// re-applying the same (or an overlapping) delete is a no-op for them.
func (s *Sequence) ApplyDelete(target opid.OpIdSpan, by opid.OpId) {
	remaining := target
	for remaining.Len > 0 {
		loc, ok := s.tree.Find(func(r run) bool { return r.IDSpan.Contains(remaining.First()) })
		if !ok {
			// The atom was never inserted locally; the caller's causal
			// dependency guarantee should prevent this.
			break
		}
		e := s.tree.At(loc)
		offset := int(remaining.Start - e.IDSpan.Start)
		avail := e.width() - offset
		take := int(remaining.Len)
		if take > avail {
			take = avail
		}
		if !e.Tombstoned {
			tomb := e.SliceElement(offset, offset+take)
			tomb.Tombstoned = true
			tomb.DeletedBy = by
			s.tree.ReplaceAt(loc, offset, offset+take, e.width(), tomb)
		}
		remaining = opid.OpIdSpan{Site: remaining.Site, Start: remaining.Start + opid.Counter(take), Len: remaining.Len - uint32(take)}
	}
}
