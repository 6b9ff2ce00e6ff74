package rletree_test

import (
	"strings"
	"testing"

	"github.com/mtkira/weavetext/rletree"
	"pgregory.net/rapid"
)

// run is a minimal Element used only by this package's tests: a run of
// plain text that merges with its neighbor while under a length cap.
// Modeled on the original implementation's CustomString benchmark element.
type run string

const runMergeCap = 8

func (r run) Len() int { return len(r) }

func (r run) CanMergeWith(other run) bool {
	return len(r)+len(other) < runMergeCap
}

func (r run) MergeWith(other run) run { return r + other }

func (r run) SliceElement(from, to int) run { return r[from:to] }

func collect(t *rletree.Tree[run]) string {
	var sb strings.Builder
	t.ForEachRun(func(r run) bool {
		sb.WriteString(string(r))
		return true
	})
	return sb.String()
}

func TestInsertAppendsAndMerges(t *testing.T) {
	tr := rletree.New[run](4)
	for i, ch := range "hello" {
		if err := tr.Insert(i, run(string(ch))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if got, want := collect(tr), "hello"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if got, want := tr.Len(), 5; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestInsertInMiddleSplits(t *testing.T) {
	tr := rletree.New[run](4)
	if err := tr.Insert(0, run("ac")); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert(1, run("b")); err != nil {
		t.Fatal(err)
	}
	if got, want := collect(tr), "abc"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestDeleteRangeAcrossRuns(t *testing.T) {
	tr := rletree.New[run](4)
	for i, ch := range "abcdefgh" {
		if err := tr.Insert(i, run(string(ch))); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.DeleteRange(2, 6); err != nil {
		t.Fatal(err)
	}
	if got, want := collect(tr), "abgh"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if got, want := tr.Len(), 4; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestOutOfBounds(t *testing.T) {
	tr := rletree.New[run](4)
	if err := tr.Insert(1, run("x")); err != rletree.ErrOutOfBounds {
		t.Errorf("Insert(1, ..) on empty tree = %v, want ErrOutOfBounds", err)
	}
	if err := tr.Insert(0, run("x")); err != nil {
		t.Fatal(err)
	}
	if err := tr.DeleteRange(0, 5); err != rletree.ErrOutOfBounds {
		t.Errorf("DeleteRange(0,5) = %v, want ErrOutOfBounds", err)
	}
}

func TestFindAndInsertAtLocation(t *testing.T) {
	tr := rletree.New[run](4)
	for i, ch := range "ace" {
		if err := tr.Insert(i, run(string(ch))); err != nil {
			t.Fatal(err)
		}
	}
	loc, ok := tr.Find(func(r run) bool { return strings.Contains(string(r), "c") })
	if !ok {
		t.Fatal("Find did not locate run containing 'c'")
	}
	r := tr.At(loc)
	offset := strings.Index(string(r), "c") + 1
	tr.InsertAt(loc, offset, r.Len(), run("d"))
	if got, want := collect(tr), "acde"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestReplaceAtTombstones(t *testing.T) {
	tr := rletree.New[run](4)
	for i, ch := range "abcd" {
		if err := tr.Insert(i, run(string(ch))); err != nil {
			t.Fatal(err)
		}
	}
	loc, ok := tr.Find(func(r run) bool { return strings.Contains(string(r), "b") })
	if !ok {
		t.Fatal("Find did not locate run containing 'b'")
	}
	r := tr.At(loc)
	offset := strings.Index(string(r), "b")
	// Replace with an empty set of runs, simulating a tombstone flip where
	// the caller's Element chooses to represent "deleted" as absence.
	tr.ReplaceAt(loc, offset, offset+1, r.Len())
	if got, want := collect(tr), "acd"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if got, want := tr.Len(), 3; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

// TestRandomEditsMatchReferenceString runs many random inserts and deletes
// against both the tree and a plain Go string, checking they agree after
// every step. Mirrors the teacher's rapid-based ctree_property_test.go,
// applied here to the tree's position-indexed API rather than to a whole
// causal tree.
func TestRandomEditsMatchReferenceString(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tr := rletree.New[run](rapid.IntRange(4, 8).Draw(rt, "maxChildren").(int))
		var reference strings.Builder
		ref := []byte{}

		const alphabet = "abcdefghij"
		steps := rapid.IntRange(1, 60).Draw(rt, "steps").(int)
		for i := 0; i < steps; i++ {
			if len(ref) == 0 || rapid.IntRange(0, 1).Draw(rt, "doInsert").(int) == 0 {
				pos := rapid.IntRange(0, len(ref)).Draw(rt, "pos").(int)
				ch := alphabet[rapid.IntRange(0, len(alphabet)-1).Draw(rt, "chIdx").(int)]
				if err := tr.Insert(pos, run(string(ch))); err != nil {
					rt.Fatalf("Insert(%d): %v", pos, err)
				}
				ref = append(ref, 0)
				copy(ref[pos+1:], ref[pos:])
				ref[pos] = ch
			} else {
				from := rapid.IntRange(0, len(ref)-1).Draw(rt, "from").(int)
				to := rapid.IntRange(from+1, len(ref)).Draw(rt, "to").(int)
				if err := tr.DeleteRange(from, to); err != nil {
					rt.Fatalf("DeleteRange(%d,%d): %v", from, to, err)
				}
				ref = append(ref[:from], ref[to:]...)
			}
		}
		reference.Write(ref)

		if got, want := collect(tr), reference.String(); got != want {
			rt.Fatalf("content = %q, want %q", got, want)
		}
		if got, want := tr.Len(), len(ref); got != want {
			rt.Fatalf("Len() = %d, want %d", got, want)
		}
	})
}
