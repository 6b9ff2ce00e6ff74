package replica

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/mtkira/weavetext/opid"
)

const (
	defaultMaxLeafRunBytes = 64
	defaultTreeFanout      = 32
)

// Config holds the tunables recognized when constructing a Replica. The
// zero value is valid: a random site id and the production defaults for
// tree shape.
type Config struct {
	// SiteID pins the replica's site identifier. Nil means mint one from a
	// random UUIDv1, the way the teacher's NewCausalTree does.
	SiteID *opid.SiteId

	// MaxLeafRunBytes bounds how large a merged leaf run is allowed to
	// grow before the RLE tree's Element.CanMergeWith policy refuses
	// further merges. Zero means defaultMaxLeafRunBytes.
	MaxLeafRunBytes int

	// TreeFanout is the RLE tree's MAX_CHILDREN. Zero means
	// defaultTreeFanout; tests typically pass something small (4) to
	// exercise splits/merges without huge documents.
	TreeFanout int
}

func (c Config) withDefaults() Config {
	if c.MaxLeafRunBytes <= 0 {
		c.MaxLeafRunBytes = defaultMaxLeafRunBytes
	}
	if c.TreeFanout <= 0 {
		c.TreeFanout = defaultTreeFanout
	}
	return c
}

func (c Config) resolveSiteID() opid.SiteId {
	if c.SiteID != nil {
		return *c.SiteID
	}
	return opid.SiteIdFromUUID(randomUUIDv1())
}

// randomUUIDv1 mints a UUIDv1 from a random MAC and the local clock,
// exactly as the teacher's randomUUIDv1 does. SiteIdFromUUID keeps only
// the clock-sequence and node bytes, so two replicas get distinct site ids
// unless their random MACs and clock sequences happen to coincide.
func randomUUIDv1() uuid.UUID {
	uuid.SetNodeID(randomMAC())
	id, err := uuid.NewUUID()
	if err != nil {
		panic(fmt.Sprintf("replica: creating UUIDv1: %v", err))
	}
	return id
}

func randomMAC() []byte {
	mac := make([]byte, 6)
	if _, err := io.ReadFull(rand.Reader, mac); err != nil {
		panic(err.Error())
	}
	return mac
}
