package domain

import (
	"context"
	"time"
)

// Transaction exposes the ownership index and transaction log operations that
// a persistence implementation must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	Now() time.Time
	// NextProductID reserves the next sequential product identifier. The
	// reservation is discarded with the transaction when it fails.
	NextProductID() string
	CreateProduct(ProductRecord) (ProductRecord, error)
	UpdateProduct(id string, mutator func(*ProductRecord) error) (ProductRecord, error)
	// AppendTransfer adds an entry to the end of the log. There is no update
	// or delete counterpart.
	AppendTransfer(TransferRecord) (TransferRecord, error)
	FindProduct(id string) (ProductRecord, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	FindProduct(id string) (ProductRecord, bool)
	// ListProducts returns products in registration order.
	ListProducts() []ProductRecord
	ListProductsByCategory(category OwnerCategory) []ProductRecord
	// ListTransfers returns the full log in append order.
	ListTransfers() []TransferRecord
	// TransfersFor filters the log by product in append order. Unknown
	// products yield an empty slice.
	TransfersFor(productID string) []TransferRecord
}

// PersistentStore is the minimal abstraction the service layer depends on.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetProduct(id string) (ProductRecord, bool)
	ListProducts() []ProductRecord
	ListTransfers() []TransferRecord
}

// ArchiveSink receives ledger entries after they are committed. Sinks are
// write-only mirrors; nothing is ever loaded back from them.
type ArchiveSink interface {
	Archive(ctx context.Context, records []TransferRecord) error
	Close() error
}
