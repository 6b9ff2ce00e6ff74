package oplog

import (
	"errors"
	"sort"

	"github.com/mtkira/weavetext/opid"
)

// ErrEmptyOp is returned by AppendLocal when op carries zero counters.
var ErrEmptyOp = errors.New("oplog: op carries zero counters")

// Log is one replica's append-only change store: the causal DAG, the
// version vector it induces, and the dependency frontier.
//
// Log is not safe for concurrent use; callers hold the replica's coarse
// lock around every method, the same contract crdt.CausalTree places on
// its own Weave/Yarns.
type Log struct {
	site     opid.SiteId
	vv       opid.VersionVector
	frontier map[opid.OpId]struct{}
	bySite   map[opid.SiteId][]*Change
	lamport  uint64
}

// New returns an empty log for the given site.
func New(site opid.SiteId) *Log {
	return &Log{
		site:     site,
		vv:       opid.NewVersionVector(),
		frontier: make(map[opid.OpId]struct{}),
		bySite:   make(map[opid.SiteId][]*Change),
	}
}

// Site returns the log's owning site.
func (l *Log) Site() opid.SiteId { return l.site }

// VV returns a snapshot of the log's version vector.
func (l *Log) VV() opid.VersionVector { return l.vv.Clone() }

// Frontier returns a sorted snapshot of the current causal frontier: the
// OpIds with no in-log successor depending on them.
func (l *Log) Frontier() []opid.OpId {
	out := make([]opid.OpId, 0, len(l.frontier))
	for id := range l.frontier {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// AppendLocal stamps ops with the next counter span for this log's site,
// attaches the current frontier as deps, and commits it against container.
// The minted span's length is the sum of the ops' own lengths: for a
// single insert that's the content length, for a delete (possibly split
// across several non-contiguous target spans, one Op each) it's the total
// atom count removed. Either way the span is the deleting or inserting
// Change's own identity, not the identity of any content a delete names
// through its Target field.
func (l *Log) AppendLocal(container opid.ContainerID, ops []Op) (Change, error) {
	n := 0
	for _, op := range ops {
		n += op.Len()
	}
	if n == 0 {
		return Change{}, ErrEmptyOp
	}
	start := l.vv.Next(l.site)
	if start == 0 {
		// Counter 0 is reserved (see opid.Counter): a site's first op is 1.
		start = 1
	}
	span := opid.OpIdSpan{Site: l.site, Start: start, Len: uint32(n)}
	c := Change{
		Container: container,
		Span:      span,
		Deps:      l.Frontier(),
		Lamport:   l.lamport + 1,
		Ops:       append([]Op(nil), ops...),
	}
	l.commit(c)
	return c, nil
}

// commit records c as applied: it joins bySite, the version vector
// absorbs its span, deps drop out of the frontier, and the change's own
// last OpId joins it.
func (l *Log) commit(c Change) {
	cc := c
	l.bySite[c.Span.Site] = insertSorted(l.bySite[c.Span.Site], &cc)
	l.vv.UpdateSpan(c.Span)
	if c.Lamport > l.lamport {
		l.lamport = c.Lamport
	}
	for _, d := range c.Deps {
		delete(l.frontier, d)
	}
	l.frontier[c.Span.Last()] = struct{}{}
}

func insertSorted(changes []*Change, c *Change) []*Change {
	i := sort.Search(len(changes), func(i int) bool { return changes[i].Span.Start >= c.Span.Start })
	changes = append(changes, nil)
	copy(changes[i+1:], changes[i:])
	changes[i] = c
	return changes
}

// depsCovered reports whether every dep of c is already present in the
// log's version vector.
func (l *Log) depsCovered(c Change) bool {
	for _, d := range c.Deps {
		if !l.vv.Covers(d) {
			return false
		}
	}
	return true
}

// Import integrates changes, applying as many as dependency order
// permits in a fixpoint loop, and returns the ones it actually
// committed. If some changes remain blocked once no further progress is
// possible, it returns a *MissingDependencyError naming the first gap —
// the changes that *did* become ready are still committed; per-change,
// integration is all-or-nothing (a blocked change contributes no partial
// state), matching §7's "integration is a transaction" for that change.
func (l *Log) Import(changes []Change) ([]Change, error) {
	pending := append([]Change(nil), changes...)
	var applied []Change

	for {
		progressed := false
		var remaining []Change
		for _, c := range pending {
			switch {
			case l.vv.CoversSpan(c.Span):
				// Already applied: re-importing the same export is a no-op.
				progressed = true
			case l.depsCovered(c):
				l.commit(c)
				applied = append(applied, c)
				progressed = true
			default:
				remaining = append(remaining, c)
			}
		}
		pending = remaining
		if !progressed || len(pending) == 0 {
			break
		}
	}

	if len(pending) > 0 {
		return applied, &MissingDependencyError{Needed: firstMissingSpan(pending, l.vv)}
	}
	return applied, nil
}

func firstMissingSpan(pending []Change, vv opid.VersionVector) opid.OpIdSpan {
	for _, c := range pending {
		for _, d := range c.Deps {
			if vv.Covers(d) {
				continue
			}
			start := vv.Next(d.Site)
			if start == 0 {
				start = 1
			}
			return opid.OpIdSpan{Site: d.Site, Start: start, Len: uint32(d.Counter) - uint32(start) + 1}
		}
	}
	return opid.OpIdSpan{}
}

// Export returns, in (Lamport, site) order, every change present locally
// but absent from remoteVV.
func (l *Log) Export(remoteVV opid.VersionVector) []Change {
	var out []Change
	for _, span := range l.vv.MissingFrom(remoteVV) {
		for _, c := range l.bySite[span.Site] {
			if c.Span.Start >= span.Start {
				out = append(out, *c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lamport != out[j].Lamport {
			return out[i].Lamport < out[j].Lamport
		}
		return out[i].Span.Site < out[j].Span.Site
	})
	return out
}
