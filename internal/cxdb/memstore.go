package cxdb

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/forge-labs/attractor/internal/idgen"
)

// idempotencyTTL is the minimum retention window §4.4.2 requires for
// repeated append_turn calls carrying the same idempotency_key to return
// the original committed turn instead of creating a duplicate.
const idempotencyTTL = 24 * time.Hour

type memContext struct {
	id   ContextID
	head TurnID
	// turns holds every committed turn in this context, keyed by id; the
	// chain from head back through ParentTurnID gives append order without
	// a separate slice.
	turns map[TurnID]*StoredTurn
}

type idempotencyEntry struct {
	turnID    TurnID
	expiresAt time.Time
}

// MemStore is an in-memory Store, used for deterministic offline runs and
// tests (§4.4.6 mode=off sits a layer above this: it swaps in NoopStore
// entirely, while MemStore is a real, if volatile, persistence layer).
type MemStore struct {
	mu          sync.Mutex
	contexts    map[ContextID]*memContext
	turnContext map[TurnID]ContextID
	blobs       map[string][]byte
	registries  map[string][]byte
	idem        map[ContextID]map[string]idempotencyEntry
}

func NewMemStore() *MemStore {
	return &MemStore{
		contexts:    map[ContextID]*memContext{},
		turnContext: map[TurnID]ContextID{},
		blobs:       map[string][]byte{},
		registries:  map[string][]byte{},
		idem:        map[ContextID]map[string]idempotencyEntry{},
	}
}

func (m *MemStore) CreateContext(_ context.Context, baseTurnID TurnID) (ContextRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := ContextID(idgen.Prefixed("ctx"))
	mc := &memContext{id: id, turns: map[TurnID]*StoredTurn{}}
	if baseTurnID != "" {
		base, ok := m.lookupTurnLocked(baseTurnID)
		if !ok {
			return ContextRef{}, fmt.Errorf("cxdb: base turn %q: %w", baseTurnID, ErrNotFound)
		}
		mc.head = base.TurnID
	}
	m.contexts[id] = mc
	return ContextRef{ContextID: id, HeadTurnID: mc.head}, nil
}

func (m *MemStore) ForkContext(_ context.Context, fromTurnID TurnID) (ContextRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base, ok := m.lookupTurnLocked(fromTurnID)
	if !ok {
		return ContextRef{}, fmt.Errorf("cxdb: fork source turn %q: %w", fromTurnID, ErrNotFound)
	}
	id := ContextID(idgen.Prefixed("ctx"))
	mc := &memContext{id: id, turns: map[TurnID]*StoredTurn{}, head: base.TurnID}
	m.contexts[id] = mc
	return ContextRef{ContextID: id, HeadTurnID: mc.head}, nil
}

func (m *MemStore) lookupTurnLocked(id TurnID) (*StoredTurn, bool) {
	cid, ok := m.turnContext[id]
	if !ok {
		return nil, false
	}
	mc := m.contexts[cid]
	st, ok := mc.turns[id]
	return st, ok
}

func (m *MemStore) AppendTurn(_ context.Context, req AppendTurnRequest) (StoredTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc, ok := m.contexts[req.ContextID]
	if !ok {
		return StoredTurn{}, fmt.Errorf("cxdb: context %q: %w", req.ContextID, ErrNotFound)
	}

	if req.IdempotencyKey != "" {
		if keys, ok := m.idem[req.ContextID]; ok {
			if entry, ok := keys[req.IdempotencyKey]; ok && time.Now().Before(entry.expiresAt) {
				if st, ok := mc.turns[entry.turnID]; ok {
					return *st, nil
				}
			}
		}
	}

	parent := req.ParentTurnID
	if parent == "" {
		parent = mc.head
	}
	depth := 0
	if parent != "" {
		p, ok := mc.turns[parent]
		if !ok {
			return StoredTurn{}, fmt.Errorf("cxdb: parent turn %q: %w", parent, ErrNotFound)
		}
		depth = p.Depth + 1
	}

	st := &StoredTurn{
		TurnID:       TurnID(idgen.Prefixed("turn")),
		ContextID:    req.ContextID,
		ParentTurnID: parent,
		Depth:        depth,
		TypeID:       req.TypeID,
		TypeVersion:  req.TypeVersion,
		PayloadBytes: append([]byte{}, req.PayloadBytes...),
		ContentHash:  blake3Hex(req.PayloadBytes),
		FSRootHash:   req.FSRootHash,
		AppendedAt:   time.Now(),
	}
	mc.turns[st.TurnID] = st
	mc.head = st.TurnID
	m.turnContext[st.TurnID] = req.ContextID

	if req.IdempotencyKey != "" {
		if m.idem[req.ContextID] == nil {
			m.idem[req.ContextID] = map[string]idempotencyEntry{}
		}
		m.idem[req.ContextID][req.IdempotencyKey] = idempotencyEntry{turnID: st.TurnID, expiresAt: time.Now().Add(idempotencyTTL)}
	}
	return *st, nil
}

func (m *MemStore) GetHead(_ context.Context, contextID ContextID) (ContextRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.contexts[contextID]
	if !ok {
		return ContextRef{}, fmt.Errorf("cxdb: context %q: %w", contextID, ErrNotFound)
	}
	return ContextRef{ContextID: contextID, HeadTurnID: mc.head}, nil
}

// walkBack returns up to limit turns (0 means unbounded) starting at from
// and following ParentTurnID links, i.e. newest-first.
func (m *MemStore) walkBack(mc *memContext, from TurnID, limit int, includePayload bool) []StoredTurn {
	var out []StoredTurn
	for cur := from; cur != ""; {
		st, ok := mc.turns[cur]
		if !ok {
			break
		}
		cp := *st
		if !includePayload {
			cp.PayloadBytes = nil
		}
		out = append(out, cp)
		if limit > 0 && len(out) >= limit {
			break
		}
		cur = st.ParentTurnID
	}
	return out
}

func (m *MemStore) GetLast(_ context.Context, contextID ContextID, limit int, includePayload bool) ([]StoredTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.contexts[contextID]
	if !ok {
		return nil, fmt.Errorf("cxdb: context %q: %w", contextID, ErrNotFound)
	}
	return m.walkBack(mc, mc.head, limit, includePayload), nil
}

func (m *MemStore) ListTurns(_ context.Context, contextID ContextID, beforeTurnID TurnID, limit int) ([]StoredTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.contexts[contextID]
	if !ok {
		return nil, fmt.Errorf("cxdb: context %q: %w", contextID, ErrNotFound)
	}
	start := mc.head
	if beforeTurnID != "" {
		cursor, ok := mc.turns[beforeTurnID]
		if !ok {
			return nil, fmt.Errorf("cxdb: cursor turn %q: %w", beforeTurnID, ErrNotFound)
		}
		start = cursor.ParentTurnID
	}
	return m.walkBack(mc, start, limit, true), nil
}

func (m *MemStore) PutBlob(_ context.Context, b []byte) (string, error) {
	h := blake3Hex(b)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[h]; !ok {
		m.blobs[h] = append([]byte{}, b...)
	}
	return h, nil
}

func (m *MemStore) GetBlob(_ context.Context, hash string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[hash]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, b...), true, nil
}

func (m *MemStore) AttachFS(_ context.Context, turnID TurnID, fsRootHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.lookupTurnLocked(turnID)
	if !ok {
		return fmt.Errorf("cxdb: turn %q: %w", turnID, ErrNotFound)
	}
	st.FSRootHash = fsRootHash
	return nil
}

func (m *MemStore) PublishRegistryBundle(_ context.Context, bundleID string, bundleJSON []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registries[bundleID] = append([]byte{}, bundleJSON...)
	return nil
}

func (m *MemStore) GetRegistryBundle(_ context.Context, bundleID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.registries[bundleID]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, b...), true, nil
}

// blake3Hex is the BLAKE3-256 hex digest used for both blob addressing and
// turn content hashes (§4.4.1, §4.4.4).
func blake3Hex(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}
