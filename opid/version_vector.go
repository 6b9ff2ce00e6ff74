package opid

import (
	"fmt"
	"sort"
	"strings"
)

// VersionVector maps each site to the next Counter expected from it, i.e.
// one past the last Counter seen. A site absent from the map has seen
// nothing from it.
type VersionVector map[SiteId]Counter

// NewVersionVector returns an empty version vector.
func NewVersionVector() VersionVector {
	return make(VersionVector)
}

// Next returns the next expected counter for site.
func (vv VersionVector) Next(site SiteId) Counter {
	return vv[site]
}

// Covers reports whether id has already been observed by vv, i.e. whether
// vv's site entry is strictly past id's counter.
func (vv VersionVector) Covers(id OpId) bool {
	return id.Counter < vv[id.Site]
}

// CoversSpan reports whether every element of s has been observed.
func (vv VersionVector) CoversSpan(s OpIdSpan) bool {
	return s.End() <= vv[s.Site]
}

// Update advances vv so that it covers id, growing the site's entry if
// necessary. It never moves an entry backward.
func (vv VersionVector) Update(id OpId) {
	if next := id.Counter + 1; next > vv[id.Site] {
		vv[id.Site] = next
	}
}

// UpdateSpan advances vv so that it covers every element of s.
func (vv VersionVector) UpdateSpan(s OpIdSpan) {
	if end := s.End(); end > vv[s.Site] {
		vv[s.Site] = end
	}
}

// Clone returns an independent copy of vv.
func (vv VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(vv))
	for site, counter := range vv {
		out[site] = counter
	}
	return out
}

// Merge returns the componentwise maximum of vv and other, leaving both
// inputs unchanged.
func (vv VersionVector) Merge(other VersionVector) VersionVector {
	out := vv.Clone()
	for site, counter := range other {
		if counter > out[site] {
			out[site] = counter
		}
	}
	return out
}

// compareResult mirrors the three-way comparisons used elsewhere in the
// engine (see crdt.Weft.Compare in the teacher for the same shape).
type compareResult int

const (
	Equal compareResult = iota
	Less
	Greater
	Concurrent
)

// Compare orders two version vectors componentwise. Missing entries are
// treated as zero.
func (vv VersionVector) Compare(other VersionVector) compareResult {
	var hasLess, hasGreater bool
	sites := make(map[SiteId]struct{}, len(vv)+len(other))
	for s := range vv {
		sites[s] = struct{}{}
	}
	for s := range other {
		sites[s] = struct{}{}
	}
	for s := range sites {
		a, b := vv[s], other[s]
		if a < b {
			hasLess = true
		} else if a > b {
			hasGreater = true
		}
	}
	switch {
	case hasLess && hasGreater:
		return Concurrent
	case hasLess:
		return Less
	case hasGreater:
		return Greater
	default:
		return Equal
	}
}

// MissingFrom returns the spans present in vv but absent from other, i.e.
// the ops other would need imported to catch up to vv. Spans are returned
// in ascending site order for deterministic wire output.
func (vv VersionVector) MissingFrom(other VersionVector) []OpIdSpan {
	var spans []OpIdSpan
	for site, next := range vv {
		from := other[site]
		if next > from {
			spans = append(spans, OpIdSpan{Site: site, Start: from, Len: uint32(next - from)})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Site < spans[j].Site })
	return spans
}

func (vv VersionVector) String() string {
	sites := make([]SiteId, 0, len(vv))
	for s := range vv {
		sites = append(sites, s)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
	var sb strings.Builder
	sb.WriteByte('{')
	for i, s := range sites {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s:%d", s, vv[s])
	}
	sb.WriteByte('}')
	return sb.String()
}
