package hierarchy

import "slices"

// Notify builds the dispatch list for raw (target's shallow observers,
// each ancestor's deep observers with a path rewrite, then every root
// observer with the absolute path) and either queues it behind an
// in-flight dispatch or delivers it immediately.
//
// Ported from notify_without_lock: the original takes the hierarchy's own
// lock internally because it's reachable from multiple threads through an
// Arc<Mutex<_>>. This engine's replica is already single-threaded behind
// its own coarse lock, released before Notify runs (see package doc), so
// Notify needs no lock of its own — only the calling/pending bookkeeping
// that makes reentrant calls (an observer triggering another mutation)
// queue instead of interleave.
func (h *Hierarchy) Notify(reg ContainerIndexer, raw RawEvent) {
	absPath, ok := h.GetAbsPath(reg, raw.Container)
	if !ok {
		absPath = nil
	}

	event := Event{
		Target:       raw.Container,
		AbsolutePath: absPath,
		Local:        raw.Local,
		Diff:         raw.Diff,
	}

	var dispatches []eventDispatch

	target := h.entry(raw.Container)
	if len(target.observers) > 0 {
		dispatches = append(dispatches, eventDispatch{subIDs: sortedIDs(target.observers)})
	}

	pathToRoot := append(Path(nil), absPath...)
	reversePath(pathToRoot)

	current, ok := raw.Container, true
	count := 0
	for ok {
		n, exists := h.nodes[current]
		if !exists {
			break
		}
		if len(n.deepObservers) > 0 {
			relative := append(Path(nil), pathToRoot[:count]...)
			reversePath(relative)
			dispatches = append(dispatches, eventDispatch{
				subIDs: sortedIDs(n.deepObservers),
				rewrite: &pathRewrite{
					path:      relative,
					target:    current,
					hasTarget: true,
				},
			})
		}
		count++
		current, ok = n.parent, n.hasParent
	}

	if len(h.rootObservers) > 0 {
		dispatches = append(dispatches, eventDispatch{
			subIDs: sortedIDs(h.rootObservers),
			rewrite: &pathRewrite{
				path:      append(Path(nil), absPath...),
				hasTarget: false,
			},
		})
	}

	if h.calling {
		h.pendingEvent = &event
		h.pendingDispatch = dispatches
		return
	}

	h.calling = true
	observers := h.observers
	h.observers = make(map[SubscriptionID]Observer)

	h.callObservers(observers, dispatches, event)
	h.reset(observers)
}

// callObservers delivers event to every subscription in dispatches,
// skipping any that were unsubscribed earlier in the same pass.
func (h *Hierarchy) callObservers(observers map[SubscriptionID]Observer, dispatches []eventDispatch, event Event) {
	for _, d := range dispatches {
		e := event
		if d.rewrite != nil {
			e.RelativePath = d.rewrite.path
			e.CurrentTarget = d.rewrite.target
			e.HasCurrent = d.rewrite.hasTarget
		}
		for _, id := range d.subIDs {
			if slices.Contains(h.deletedObservers, id) {
				continue
			}
			if ob, ok := observers[id]; ok {
				ob(e)
			}
		}
	}
}

// reset restores the observer table after a dispatch pass, drops any
// subscriptions that were unsubscribed mid-dispatch, and drains one
// pending dispatch (queued by a reentrant Notify call) if there is one.
func (h *Hierarchy) reset(observers map[SubscriptionID]Observer) {
	deleted := h.deletedObservers
	h.deletedObservers = nil
	for _, id := range deleted {
		delete(observers, id)
	}
	for id, ob := range h.observers {
		observers[id] = ob
	}
	h.observers = observers

	event, dispatches := h.pendingEvent, h.pendingDispatch
	h.pendingEvent, h.pendingDispatch = nil, nil
	if event == nil {
		h.calling = false
		return
	}

	next := h.observers
	h.observers = make(map[SubscriptionID]Observer)
	h.callObservers(next, dispatches, *event)
	h.reset(next)
}
