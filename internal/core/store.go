package core

import (
	memory "fairtrace/internal/infra/persistence/memory"
)

// MemoryStore is the in-memory ownership index and transaction log.
type MemoryStore = memory.Store

// NewMemoryStore constructs an empty in-memory store evaluating engine on commit.
func NewMemoryStore(engine *RulesEngine, opts ...memory.Option) *MemoryStore {
	return memory.NewStore(engine, opts...)
}
