package opid_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mtkira/weavetext/opid"
)

func TestOpIdSpan(t *testing.T) {
	s := opid.OpIdSpan{Site: 1, Start: 10, Len: 3}
	if got, want := s.End(), opid.Counter(13); got != want {
		t.Errorf("End() = %d, want %d", got, want)
	}
	if got, want := s.First(), (opid.OpId{Site: 1, Counter: 10}); got != want {
		t.Errorf("First() = %v, want %v", got, want)
	}
	if got, want := s.Last(), (opid.OpId{Site: 1, Counter: 12}); got != want {
		t.Errorf("Last() = %v, want %v", got, want)
	}
	for _, id := range []opid.OpId{{Site: 1, Counter: 10}, {Site: 1, Counter: 12}} {
		if !s.Contains(id) {
			t.Errorf("Contains(%v) = false, want true", id)
		}
	}
	if s.Contains(opid.OpId{Site: 1, Counter: 13}) {
		t.Errorf("Contains(end) = true, want false")
	}
	if s.Contains(opid.OpId{Site: 2, Counter: 11}) {
		t.Errorf("Contains(other site) = true, want false")
	}
}

func TestOpIdSpanSub(t *testing.T) {
	s := opid.OpIdSpan{Site: 1, Start: 10, Len: 5}
	got := s.Sub(1, 3)
	want := opid.OpIdSpan{Site: 1, Start: 11, Len: 2}
	if got != want {
		t.Errorf("Sub(1,3) = %v, want %v", got, want)
	}
}

func TestOpIdSpanAdjacent(t *testing.T) {
	a := opid.OpIdSpan{Site: 1, Start: 0, Len: 3}
	b := opid.OpIdSpan{Site: 1, Start: 3, Len: 2}
	c := opid.OpIdSpan{Site: 1, Start: 4, Len: 2}
	if !a.Adjacent(b) {
		t.Errorf("a.Adjacent(b) = false, want true")
	}
	if a.Adjacent(c) {
		t.Errorf("a.Adjacent(c) = true, want false")
	}
}

func TestVersionVectorCovers(t *testing.T) {
	vv := opid.NewVersionVector()
	vv.UpdateSpan(opid.OpIdSpan{Site: 1, Start: 0, Len: 5})

	if !vv.Covers(opid.OpId{Site: 1, Counter: 4}) {
		t.Errorf("Covers(4) = false, want true")
	}
	if vv.Covers(opid.OpId{Site: 1, Counter: 5}) {
		t.Errorf("Covers(5) = true, want false")
	}
	if vv.Covers(opid.OpId{Site: 2, Counter: 0}) {
		t.Errorf("Covers(unseen site) = true, want false")
	}
}

func TestVersionVectorMergeAndCompare(t *testing.T) {
	a := opid.VersionVector{1: 3, 2: 1}
	b := opid.VersionVector{1: 1, 2: 5}

	merged := a.Merge(b)
	want := opid.VersionVector{1: 3, 2: 5}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}

	if got := a.Compare(b); got != opid.Concurrent {
		t.Errorf("a.Compare(b) = %v, want Concurrent", got)
	}
	if got := a.Compare(a.Clone()); got != opid.Equal {
		t.Errorf("a.Compare(a) = %v, want Equal", got)
	}
	if got := a.Compare(merged); got != opid.Less {
		t.Errorf("a.Compare(merged) = %v, want Less", got)
	}
}

func TestVersionVectorMissingFrom(t *testing.T) {
	a := opid.VersionVector{1: 5, 2: 2}
	b := opid.VersionVector{1: 2}

	got := a.MissingFrom(b)
	want := []opid.OpIdSpan{
		{Site: 1, Start: 2, Len: 3},
		{Site: 2, Start: 0, Len: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MissingFrom() mismatch (-want +got):\n%s", diff)
	}
}

func TestContainerID(t *testing.T) {
	root := opid.RootID("doc", opid.TextContainer)
	if !root.IsRoot() {
		t.Errorf("root.IsRoot() = false, want true")
	}
	if got, want := root.Name(), "doc"; got != want {
		t.Errorf("root.Name() = %q, want %q", got, want)
	}

	origin := opid.OpId{Site: 1, Counter: 7}
	normal := opid.NormalID(origin, opid.TextContainer)
	if normal.IsRoot() {
		t.Errorf("normal.IsRoot() = true, want false")
	}
	if got := normal.Origin(); got != origin {
		t.Errorf("normal.Origin() = %v, want %v", got, origin)
	}

	if root == opid.RootID("other", opid.TextContainer) {
		t.Errorf("distinct root names compared equal")
	}
	if root != opid.RootID("doc", opid.TextContainer) {
		t.Errorf("identical root ids compared unequal")
	}
}
