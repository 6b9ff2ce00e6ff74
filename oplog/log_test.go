package oplog_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/mtkira/weavetext/oplog"
	"github.com/mtkira/weavetext/opid"
)

var doc = opid.RootID("doc", opid.TextContainer)

func insertOp(content string) []oplog.Op {
	return []oplog.Op{{Kind: oplog.OpInsert, Content: content}}
}

func TestAppendLocalAdvancesVV(t *testing.T) {
	l := oplog.New(1)
	c1, err := l.AppendLocal(doc, insertOp("ab"))
	require.NoError(t, err)
	require.Equal(t, opid.OpIdSpan{Site: 1, Start: 1, Len: 2}, c1.Span)
	require.Empty(t, c1.Deps)

	c2, err := l.AppendLocal(doc, insertOp("c"))
	require.NoError(t, err)
	require.Equal(t, opid.OpIdSpan{Site: 1, Start: 3, Len: 1}, c2.Span)
	require.Equal(t, []opid.OpId{{Site: 1, Counter: 2}}, c2.Deps)

	if got, want := l.VV(), (opid.VersionVector{1: 4}); !cmp.Equal(got, want) {
		t.Errorf("VV() = %v, want %v", got, want)
	}
}

func TestExportOnlyReturnsMissingSpans(t *testing.T) {
	a := oplog.New(1)
	a.AppendLocal(doc, insertOp("ab"))
	a.AppendLocal(doc, insertOp("c"))

	b := oplog.New(2)
	got, err := b.Import(a.Export(b.VV()))
	require.NoError(t, err)
	require.Len(t, got, 2)

	if diff := cmp.Diff(a.VV(), b.VV()); diff != "" {
		t.Errorf("VV mismatch after sync (-a +b):\n%s", diff)
	}

	// Nothing new to export once b is caught up.
	require.Empty(t, a.Export(b.VV()))
}

func TestImportReportsMissingDependency(t *testing.T) {
	a := oplog.New(1)
	c1, _ := a.AppendLocal(doc, insertOp("a"))
	c2, _ := a.AppendLocal(doc, insertOp("b"))

	b := oplog.New(2)
	// Import only the second change; its dep on the first is missing.
	applied, err := b.Import([]oplog.Change{c2})
	require.Empty(t, applied)

	var missingErr *oplog.MissingDependencyError
	require.ErrorAs(t, err, &missingErr)
	require.Equal(t, c1.Span, missingErr.Needed)

	if got := b.VV(); len(got) != 0 {
		t.Errorf("VV() after failed import = %v, want empty (no state change)", got)
	}

	// Supplying both in one batch, regardless of order, makes progress.
	applied, err = b.Import([]oplog.Change{c2, c1})
	require.NoError(t, err)
	require.Len(t, applied, 2)
}

func TestImportIsIdempotent(t *testing.T) {
	a := oplog.New(1)
	a.AppendLocal(doc, insertOp("xy"))

	b := oplog.New(2)
	exported := a.Export(b.VV())
	_, err := b.Import(exported)
	require.NoError(t, err)
	vvAfterFirst := b.VV()

	_, err = b.Import(exported)
	require.NoError(t, err)
	if diff := cmp.Diff(vvAfterFirst, b.VV()); diff != "" {
		t.Errorf("VV changed on re-import (-first +second):\n%s", diff)
	}
}

func TestFrontierTracksOpenDeps(t *testing.T) {
	l := oplog.New(1)
	c1, _ := l.AppendLocal(doc, insertOp("a"))
	if got, want := l.Frontier(), []opid.OpId{c1.Span.Last()}; !cmp.Equal(got, want) {
		t.Errorf("Frontier() after one change = %v, want %v", got, want)
	}

	c2, _ := l.AppendLocal(doc, insertOp("b"))
	if got, want := l.Frontier(), []opid.OpId{c2.Span.Last()}; !cmp.Equal(got, want) {
		t.Errorf("Frontier() after second change = %v, want %v", got, want)
	}
}
