// Package replica wires the causal log, the sequence CRDT and the
// container hierarchy into the engine's external surface: Replica and
// TextHandle (§6), plus the sync driver (import/export, §4.5) and a wire
// codec for the change records Export/Import exchange.
//
// Grounded on crdt.CausalTree as the one type in the teacher that plays
// an equivalent role — owning the log, the content, and (via its own
// Fork/Merge) the sync driver all at once — though here those
// responsibilities are delegated to oplog, sequence and hierarchy rather
// than folded into one struct.
package replica

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mtkira/weavetext/hierarchy"
	"github.com/mtkira/weavetext/oplog"
	"github.com/mtkira/weavetext/opid"
	"github.com/mtkira/weavetext/sequence"
)

// Replica is one site's view of the document set: an append-only change
// log, the container hierarchy and its observers, and the live sequence
// state of every text container touched locally or reached through
// Import.
//
// Replica serializes all work behind mu; the lock is released before any
// observer runs, so a callback can safely call back into the replica
// that triggered it (see hierarchy's package doc and §5).
type Replica struct {
	mu     sync.Mutex
	config Config
	site   opid.SiteId
	log    *oplog.Log
	hier   *hierarchy.Hierarchy
	texts  map[opid.ContainerID]*sequence.Sequence
	logger *slog.Logger
}

// New returns a Replica configured per config, minting a random site id
// if config.SiteID is nil.
func New(config Config) *Replica {
	config = config.withDefaults()
	site := config.resolveSiteID()
	return &Replica{
		config: config,
		site:   site,
		log:    oplog.New(site),
		hier:   hierarchy.New(),
		texts:  make(map[opid.ContainerID]*sequence.Sequence),
		logger: slog.Default().With("site", site),
	}
}

// SiteID returns the replica's own site identifier.
func (r *Replica) SiteID() opid.SiteId { return r.site }

// VV returns a snapshot of the replica's version vector.
func (r *Replica) VV() opid.VersionVector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.VV()
}

// GetText returns the handle for the named root text container, creating
// its backing Sequence on first use. Two calls with the same name, on
// the same or different replicas, address the same logical container.
func (r *Replica) GetText(name string) *TextHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := opid.RootID(name, opid.TextContainer)
	return &TextHandle{r: r, id: id, seq: r.textFor(id)}
}

// textFor returns the Sequence backing id, creating it if this is the
// first op this replica has seen against it. Callers must hold r.mu.
func (r *Replica) textFor(id opid.ContainerID) *sequence.Sequence {
	seq, ok := r.texts[id]
	if !ok {
		seq = sequence.New(r.config.TreeFanout, r.config.MaxLeafRunBytes)
		r.texts[id] = seq
	}
	return seq
}

// Export returns every change this replica has that remoteVV hasn't
// seen, wire-encoded for Import on another replica.
func (r *Replica) Export(remoteVV opid.VersionVector) ([]byte, error) {
	r.mu.Lock()
	changes := r.log.Export(remoteVV)
	r.mu.Unlock()
	r.logger.Debug("export", "changes", len(changes))
	return encodeChanges(changes)
}

// Import decodes data and integrates its changes, applying each newly
// committed change's ops to the container it targets and notifying
// observers once the coarse lock is released.
//
// A *CorruptError or *MissingDependencyError leaves the replica exactly
// as it was for the change(s) that couldn't be placed; any other changes
// in the same batch that were causally ready still commit (§7, and see
// oplog.Log.Import).
func (r *Replica) Import(data []byte) error {
	changes, err := decodeChanges(data)
	if err != nil {
		r.logger.Warn("import: corrupt payload", "err", err)
		return err
	}

	r.mu.Lock()
	applied, importErr := r.log.Import(changes)
	events := r.applyChanges(applied, false)
	r.mu.Unlock()

	for _, raw := range events {
		r.hier.Notify(r, raw)
	}

	if importErr != nil {
		var missing *oplog.MissingDependencyError
		if errors.As(importErr, &missing) {
			r.logger.Warn("import: missing dependency", "needed", missing.Needed)
			return &MissingDependencyError{Needed: missing.Needed}
		}
		return importErr
	}
	r.logger.Debug("import", "applied", len(applied))
	return nil
}

// applyChanges replays each change's ops against its target container's
// Sequence and returns the raw events worth notifying about. Callers
// must hold r.mu; the returned events are dispatched after it's
// released.
func (r *Replica) applyChanges(changes []oplog.Change, local bool) []hierarchy.RawEvent {
	var events []hierarchy.RawEvent
	for _, c := range changes {
		r.applyChange(c)
		if r.hier.ShouldNotify(c.Container) {
			events = append(events, hierarchy.RawEvent{Container: c.Container, Local: local, Diff: c})
		}
	}
	return events
}

// applyChange replays one change's ops in order against its container.
// All of a change's ops share its Kind (a local insert always mints a
// single-Op change; a local delete may mint several, one per target
// span), so the ops consume the change's minted span contiguously: an
// insert op's atoms are exactly the change's span, and a delete op's
// "who deleted this" id is the sub-span of the change's span it
// corresponds to.
func (r *Replica) applyChange(c oplog.Change) {
	seq := r.textFor(c.Container)
	offset := 0
	for _, op := range c.Ops {
		switch op.Kind {
		case oplog.OpInsert:
			span := opid.OpIdSpan{Site: c.Span.Site, Start: c.Span.Start + opid.Counter(offset), Len: uint32(len(op.Content))}
			seq.ApplyInsert(span, op.OriginLeft, op.OriginRight, op.Content)
			offset += len(op.Content)
		case oplog.OpDelete:
			by := c.Span.At(offset)
			seq.ApplyDelete(op.Target, by)
			offset += int(op.Target.Len)
		}
	}
}

// IndexOfChild satisfies hierarchy.ContainerIndexer. This engine's only
// container type is Text, and the public API never nests one container
// inside another, so no parent ever actually has a registered child to
// resolve; Replica still implements the method so it can hand itself to
// Hierarchy.Notify/GetPath/GetAbsPath.
func (r *Replica) IndexOfChild(parent, child opid.ContainerID) (hierarchy.Index, bool) {
	return hierarchy.Index{}, false
}

// SubscribeRoot registers observer to fire on every mutation in the
// replica, with the absolute path to the real target.
func (r *Replica) SubscribeRoot(observer hierarchy.Observer) hierarchy.SubscriptionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hier.SubscribeRoot(observer)
}

// UnsubscribeRoot removes a root subscription.
func (r *Replica) UnsubscribeRoot(id hierarchy.SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hier.UnsubscribeRoot(id)
}
