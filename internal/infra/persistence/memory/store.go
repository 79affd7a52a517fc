// Package memory provides the in-memory ownership index and transaction log.
// It is the only authoritative store: state lives for the lifetime of the
// process and is never reloaded.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fairtrace/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// ProductRecord aliases domain.ProductRecord.
	ProductRecord = domain.ProductRecord
	// TransferRecord aliases domain.TransferRecord.
	TransferRecord = domain.TransferRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// DefaultIDPrefix prefixes generated product identifiers (PROD-0001).
const DefaultIDPrefix = "PROD"

type memoryState struct {
	products map[string]ProductRecord
	// order holds product ids in registration order.
	order  []string
	ledger []TransferRecord
	// lastID is the highest product counter handed out by a committed transaction.
	lastID uint64
}

func newMemoryState() memoryState {
	return memoryState{products: make(map[string]ProductRecord)}
}

// clone copies the index and log so a transaction can mutate freely. Records
// are plain values, so copying the containers is enough.
func (s memoryState) clone() memoryState {
	cloned := memoryState{
		products: make(map[string]ProductRecord, len(s.products)),
		order:    append([]string(nil), s.order...),
		ledger:   append([]TransferRecord(nil), s.ledger...),
		lastID:   s.lastID,
	}
	for k, v := range s.products {
		cloned.products[k] = v
	}
	return cloned
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDPrefix overrides the product identifier prefix.
func WithIDPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.idPrefix = prefix
		}
	}
}

// Store is a transactional in-memory ownership index plus transaction log.
// Writers are serialized by a single lock, which also fixes the one total
// append order of the log; readers only ever see committed state.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	engine   *RulesEngine
	nowFn    func() time.Time
	idPrefix string
}

// NewStore constructs an empty store evaluating the supplied rules engine on
// every commit. A nil engine disables rule evaluation.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	s := &Store{
		state:    newMemoryState(),
		engine:   engine,
		nowFn:    func() time.Time { return time.Now().UTC() },
		idPrefix: DefaultIDPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesEngine exposes the configured rules engine.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// NowFunc exposes the store clock.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) FindProduct(id string) (ProductRecord, bool) {
	p, ok := v.state.products[id]
	return p, ok
}

func (v transactionView) ListProducts() []ProductRecord {
	out := make([]ProductRecord, 0, len(v.state.order))
	for _, id := range v.state.order {
		out = append(out, v.state.products[id])
	}
	return out
}

func (v transactionView) ListProductsByCategory(category domain.OwnerCategory) []ProductRecord {
	out := make([]ProductRecord, 0)
	for _, id := range v.state.order {
		if p := v.state.products[id]; p.OwnerCategory == category {
			out = append(out, p)
		}
	}
	return out
}

func (v transactionView) ListTransfers() []TransferRecord {
	return append([]TransferRecord(nil), v.state.ledger...)
}

func (v transactionView) TransfersFor(productID string) []TransferRecord {
	out := make([]TransferRecord, 0)
	for _, rec := range v.state.ledger {
		if rec.ProductID == productID {
			out = append(out, rec)
		}
	}
	return out
}

// RunInTransaction executes fn against a private copy of the state. The copy
// replaces the live state only when fn succeeds and no rule blocks, so a
// failed operation leaves nothing observable behind.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against the committed state under the read lock.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newTransactionView(&s.state))
}

// GetProduct returns the committed product record.
func (s *Store) GetProduct(id string) (ProductRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.products[id]
	return p, ok
}

// ListProducts returns committed products in registration order.
func (s *Store) ListProducts() []ProductRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListProducts()
}

// ListTransfers returns the committed log in append order.
func (s *Store) ListTransfers() []TransferRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListTransfers()
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) Now() time.Time {
	return tx.now
}

func (tx *transaction) NextProductID() string {
	tx.state.lastID++
	return fmt.Sprintf("%s-%04d", tx.store.idPrefix, tx.state.lastID)
}

func (tx *transaction) FindProduct(id string) (ProductRecord, bool) {
	p, ok := tx.state.products[id]
	return p, ok
}

// CreateProduct indexes a new product. Identifiers are never reused.
func (tx *transaction) CreateProduct(p ProductRecord) (ProductRecord, error) {
	if p.ID == "" {
		p.ID = tx.NextProductID()
	}
	if _, exists := tx.state.products[p.ID]; exists {
		return ProductRecord{}, domain.ValidationError{Field: "id", Reason: fmt.Sprintf("product %q already exists", p.ID)}
	}
	if err := p.Validate(); err != nil {
		return ProductRecord{}, err
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	after, err := domain.PayloadOf(p)
	if err != nil {
		return ProductRecord{}, fmt.Errorf("encode product change: %w", err)
	}
	tx.state.products[p.ID] = p
	tx.state.order = append(tx.state.order, p.ID)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ChangeCreate, After: after})
	return p, nil
}

// UpdateProduct mutates an indexed product through mutator.
func (tx *transaction) UpdateProduct(id string, mutator func(*ProductRecord) error) (ProductRecord, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return ProductRecord{}, domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return ProductRecord{}, err
	}
	if current.ID != id {
		return ProductRecord{}, domain.ValidationError{Field: "id", Reason: "product id is immutable"}
	}
	if err := current.Validate(); err != nil {
		return ProductRecord{}, err
	}
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	beforePayload, err := domain.PayloadOf(before)
	if err != nil {
		return ProductRecord{}, fmt.Errorf("encode product change: %w", err)
	}
	afterPayload, err := domain.PayloadOf(current)
	if err != nil {
		return ProductRecord{}, fmt.Errorf("encode product change: %w", err)
	}
	tx.state.products[id] = current
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ChangeUpdate, Before: beforePayload, After: afterPayload})
	return current, nil
}

// AppendTransfer adds rec to the end of the log, stamping its sequence and,
// when unset, its timestamp.
func (tx *transaction) AppendTransfer(rec TransferRecord) (TransferRecord, error) {
	if _, ok := tx.state.products[rec.ProductID]; !ok {
		return TransferRecord{}, domain.ValidationError{Field: "product_id", Reason: fmt.Sprintf("product %q is not indexed", rec.ProductID)}
	}
	if err := rec.Validate(); err != nil {
		return TransferRecord{}, err
	}
	rec.Sequence = uint64(len(tx.state.ledger)) + 1
	if rec.Timestamp.IsZero() {
		rec.Timestamp = tx.now
	}
	after, err := domain.PayloadOf(rec)
	if err != nil {
		return TransferRecord{}, fmt.Errorf("encode transfer change: %w", err)
	}
	tx.state.ledger = append(tx.state.ledger, rec)
	tx.recordChange(Change{Entity: domain.EntityTransfer, Action: domain.ChangeAppend, After: after})
	return rec, nil
}
