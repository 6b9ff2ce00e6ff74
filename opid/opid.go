// Package opid defines the identifiers shared by every layer of the engine:
// site and counter pairs, contiguous spans of them, and the version vectors
// and container identities built on top.
//
// Nothing in this package mutates state or performs I/O; it exists so that
// oplog, sequence, hierarchy and replica can agree on identity without
// importing one another.
package opid

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/google/uuid"
)

// SiteId is an opaque identifier of a replica. It is compared and hashed by
// value, so it is safe to use as a map key.
type SiteId uint64

func (s SiteId) String() string { return fmt.Sprintf("S%d", uint64(s)) }

// SiteIdFromUUID derives a SiteId from the low 64 bits of a UUID, the way
// crdt.NewCausalTree mints a UUIDv1 per site. Used by replica.New when the
// caller doesn't pin a numeric site id in its Config.
func SiteIdFromUUID(id uuid.UUID) SiteId {
	var v uint64
	for _, b := range id[8:16] {
		v = v<<8 | uint64(b)
	}
	return SiteId(v)
}

// Counter is a monotonically increasing, per-site sequence number. Counter 0
// is reserved and never assigned to a real op; it marks "no op" the way the
// teacher's AtomID{} zero value marks "no cause".
type Counter uint32

// OpId globally identifies a single atomic unit of change: one character
// insertion or deletion, produced by a single site.
type OpId struct {
	Site    SiteId
	Counter Counter
}

// Nil is the zero OpId, used as a sentinel: the origin of the first op in a
// sequence, or "no dependency".
var Nil = OpId{}

// IsNil reports whether id is the zero value.
func (id OpId) IsNil() bool { return id == Nil }

func (id OpId) String() string {
	if id.IsNil() {
		return "∅"
	}
	return fmt.Sprintf("%s@%d", id.Site, id.Counter)
}

// Compare orders two OpIds: first by site, then by counter. It serves for
// sorting, and it is also the concurrent-insert tie-break of the sequence
// CRDT: sequence.Sequence.ApplyInsert compares the newcomer's first OpId
// against each peer's with it.
func (id OpId) Compare(other OpId) int {
	if id.Site != other.Site {
		if id.Site < other.Site {
			return -1
		}
		return 1
	}
	if id.Counter != other.Counter {
		if id.Counter < other.Counter {
			return -1
		}
		return 1
	}
	return 0
}

// OpIdSpan is a contiguous run of Counters from the same site, covering
// [Start, Start+Len).
type OpIdSpan struct {
	Site  SiteId
	Start Counter
	Len   uint32
}

func (s OpIdSpan) String() string {
	if s.Len == 0 {
		return fmt.Sprintf("%s@[%d,+0)", s.Site, s.Start)
	}
	return fmt.Sprintf("%s@[%d,%d)", s.Site, s.Start, uint32(s.Start)+s.Len)
}

// End returns the counter one past the span's last element.
func (s OpIdSpan) End() Counter { return Counter(uint32(s.Start) + s.Len) }

// First returns the OpId of the first element in the span.
func (s OpIdSpan) First() OpId { return OpId{Site: s.Site, Counter: s.Start} }

// Last returns the OpId of the last element in the span. Panics if the span
// is empty.
func (s OpIdSpan) Last() OpId {
	if s.Len == 0 {
		panic("opid: Last of empty OpIdSpan")
	}
	return OpId{Site: s.Site, Counter: Counter(uint32(s.End()) - 1)}
}

// Contains reports whether id falls within the span.
func (s OpIdSpan) Contains(id OpId) bool {
	return id.Site == s.Site && id.Counter >= s.Start && id.Counter < s.End()
}

// At returns the OpId of the i-th element of the span.
func (s OpIdSpan) At(i int) OpId {
	return OpId{Site: s.Site, Counter: Counter(uint32(s.Start) + uint32(i))}
}

// Sub returns the sub-span [from, to) of counter offsets, both relative to
// Start. Panics if the bounds are out of range.
func (s OpIdSpan) Sub(from, to int) OpIdSpan {
	if from < 0 || to > int(s.Len) || from > to {
		panic(fmt.Sprintf("opid: Sub(%d,%d) out of range for %v", from, to, s))
	}
	return OpIdSpan{
		Site:  s.Site,
		Start: Counter(uint32(s.Start) + uint32(from)),
		Len:   uint32(to - from),
	}
}

// Adjacent reports whether s immediately precedes other: same site,
// consecutive counters.
func (s OpIdSpan) Adjacent(other OpIdSpan) bool {
	return s.Site == other.Site && s.End() == other.Start
}

// ContainerType distinguishes the kinds of container a ContainerID can
// name. Only Text is implemented by this engine; the others are admitted by
// the type so that ContainerID round-trips through the wire format even
// when a future layer adds richer containers (§1's "non-goals" scope the
// *functionality* out, not the identifier space).
type ContainerType uint8

const (
	TextContainer ContainerType = iota
	MapContainer
	ListContainer
)

func (t ContainerType) String() string {
	switch t {
	case TextContainer:
		return "Text"
	case MapContainer:
		return "Map"
	case ListContainer:
		return "List"
	default:
		return fmt.Sprintf("ContainerType(%d)", uint8(t))
	}
}

// ContainerID addresses a container within a replica: either a named Root,
// shared across replicas by name, or a Normal container birth-identified by
// the OpId that created it.
//
// The zero value is not a valid ContainerID; use RootID or NormalID.
type ContainerID struct {
	isRoot bool
	name   string
	origin OpId
	typ    ContainerType
}

// RootID returns the ContainerID of the named root container of the given
// type. Two replicas that both call RootID with the same name and type
// address the same logical container.
func RootID(name string, typ ContainerType) ContainerID {
	return ContainerID{isRoot: true, name: name, typ: typ}
}

// NormalID returns the ContainerID of a container born from the insertion
// at origin.
func NormalID(origin OpId, typ ContainerType) ContainerID {
	if origin.IsNil() {
		panic("opid: NormalID requires a non-nil origin")
	}
	return ContainerID{isRoot: false, origin: origin, typ: typ}
}

// IsRoot reports whether this is a named root container.
func (id ContainerID) IsRoot() bool { return id.isRoot }

// Name returns the root's name. Panics if !IsRoot().
func (id ContainerID) Name() string {
	if !id.isRoot {
		panic("opid: Name of non-root ContainerID")
	}
	return id.name
}

// Origin returns the OpId that created a normal container. Panics if
// IsRoot().
func (id ContainerID) Origin() OpId {
	if id.isRoot {
		panic("opid: Origin of root ContainerID")
	}
	return id.origin
}

// Type returns the container's type.
func (id ContainerID) Type() ContainerType { return id.typ }

func (id ContainerID) String() string {
	if id.isRoot {
		return fmt.Sprintf("root:%s(%s)", id.name, id.typ)
	}
	return fmt.Sprintf("cid:%s(%s)", id.origin, id.typ)
}

// gobContainerID mirrors ContainerID's unexported fields so gob, which only
// sees exported struct fields, has something to encode. replica's wire
// codec carries a ContainerID per Change, so this round trip matters, not
// just test fixtures.
type gobContainerID struct {
	IsRoot bool
	Name   string
	Origin OpId
	Type   ContainerType
}

// GobEncode implements gob.GobEncoder.
func (id ContainerID) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	aux := gobContainerID{IsRoot: id.isRoot, Name: id.name, Origin: id.origin, Type: id.typ}
	if err := gob.NewEncoder(&buf).Encode(aux); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (id *ContainerID) GobDecode(data []byte) error {
	var aux gobContainerID
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&aux); err != nil {
		return err
	}
	id.isRoot, id.name, id.origin, id.typ = aux.IsRoot, aux.Name, aux.Origin, aux.Type
	return nil
}
