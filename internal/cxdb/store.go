// Package cxdb implements the persistence boundary (§4.4): an immutable,
// append-only store of typed turns grouped into contexts, with
// content-addressed blob storage and deterministic filesystem snapshots.
// The attractor engine and the agent session engine are both CXDB clients;
// this package carries no domain knowledge of either beyond the turn-family
// registry bundles in registry.go.
package cxdb

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that find no matching context, turn,
// or blob.
var ErrNotFound = errors.New("cxdb: not found")

// ContextID identifies one append-only turn sequence (§4.4.5): a run
// context, a thread context, or an attempt/branch context.
type ContextID string

// TurnID identifies one committed turn within a context.
type TurnID string

// AppendTurnRequest is the input to Store.AppendTurn (§4.4.1).
type AppendTurnRequest struct {
	ContextID ContextID
	// ParentTurnID pins the append to a specific parent; empty means "use
	// whatever the current head is" (§4.4.2), resolved atomically by the
	// store.
	ParentTurnID   TurnID
	TypeID         string
	TypeVersion    int
	PayloadBytes   []byte
	IdempotencyKey string
	// FSRootHash optionally attaches a filesystem snapshot to the turn in
	// the same call as attach_fs (§4.4.1).
	FSRootHash string
}

// StoredTurn is a committed turn as returned by the store (§4.4.1).
type StoredTurn struct {
	TurnID       TurnID
	ContextID    ContextID
	ParentTurnID TurnID
	Depth        int
	TypeID       string
	TypeVersion  int
	PayloadBytes []byte
	ContentHash  string
	FSRootHash   string
	AppendedAt   time.Time
}

// ContextRef identifies a context and its current head turn.
type ContextRef struct {
	ContextID  ContextID
	HeadTurnID TurnID
}

// Mode selects the persistence toggle (§4.4.6).
type Mode string

const (
	// ModeOff skips all writes, for deterministic in-memory execution.
	ModeOff Mode = "off"
	// ModeRequired aborts the calling run/session on any write failure.
	ModeRequired Mode = "required"
)

// Store is the runtime-facing CXDB contract (§4.4.1). Implementations must
// be safe for concurrent use: attractor stages and agent sessions append to
// the same store, and sometimes the same context, concurrently.
type Store interface {
	CreateContext(ctx context.Context, baseTurnID TurnID) (ContextRef, error)
	ForkContext(ctx context.Context, fromTurnID TurnID) (ContextRef, error)
	AppendTurn(ctx context.Context, req AppendTurnRequest) (StoredTurn, error)
	GetHead(ctx context.Context, contextID ContextID) (ContextRef, error)
	GetLast(ctx context.Context, contextID ContextID, limit int, includePayload bool) ([]StoredTurn, error)
	ListTurns(ctx context.Context, contextID ContextID, beforeTurnID TurnID, limit int) ([]StoredTurn, error)
	PutBlob(ctx context.Context, b []byte) (string, error)
	GetBlob(ctx context.Context, hash string) ([]byte, bool, error)
	AttachFS(ctx context.Context, turnID TurnID, fsRootHash string) error
	PublishRegistryBundle(ctx context.Context, bundleID string, bundleJSON []byte) error
	GetRegistryBundle(ctx context.Context, bundleID string) ([]byte, bool, error)
}

// NoopStore implements Store by discarding every write, backing the
// ModeOff persistence toggle (§4.4.6) without callers needing a type
// switch at every call site.
type NoopStore struct{}

func (NoopStore) CreateContext(context.Context, TurnID) (ContextRef, error) {
	return ContextRef{ContextID: "noop"}, nil
}

func (NoopStore) ForkContext(context.Context, TurnID) (ContextRef, error) {
	return ContextRef{ContextID: "noop"}, nil
}

func (NoopStore) AppendTurn(_ context.Context, req AppendTurnRequest) (StoredTurn, error) {
	return StoredTurn{ContextID: req.ContextID, TypeID: req.TypeID, TypeVersion: req.TypeVersion, AppendedAt: time.Now()}, nil
}

func (NoopStore) GetHead(context.Context, ContextID) (ContextRef, error) { return ContextRef{}, nil }

func (NoopStore) GetLast(context.Context, ContextID, int, bool) ([]StoredTurn, error) {
	return nil, nil
}

func (NoopStore) ListTurns(context.Context, ContextID, TurnID, int) ([]StoredTurn, error) {
	return nil, nil
}

func (NoopStore) PutBlob(context.Context, []byte) (string, error) { return "", nil }

func (NoopStore) GetBlob(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NoopStore) AttachFS(context.Context, TurnID, string) error { return nil }

func (NoopStore) PublishRegistryBundle(context.Context, string, []byte) error { return nil }

func (NoopStore) GetRegistryBundle(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}
