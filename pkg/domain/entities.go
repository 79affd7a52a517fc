// Package domain defines the ownership index records, ledger entries, and
// rule evaluation primitives used by fairtrace.
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record touched by a transaction.
type EntityType string

// Supported entity type identifiers used in Change records and violations.
const (
	// EntityProduct identifies a record in the ownership index.
	EntityProduct EntityType = "product"
	// EntityTransfer identifies an entry in the transaction log.
	EntityTransfer EntityType = "transfer"
)

// OwnerCategory is the pipeline stage a product currently occupies.
type OwnerCategory string

// Pipeline stages in the only order a product may move through them.
const (
	CategoryFarmer      OwnerCategory = "Farmer"
	CategoryDistributor OwnerCategory = "Distributor"
	CategoryRetailer    OwnerCategory = "Retailer"
)

var categoryOrder = []OwnerCategory{CategoryFarmer, CategoryDistributor, CategoryRetailer}

// OwnerCategories returns the pipeline stages in order.
func OwnerCategories() []OwnerCategory {
	return append([]OwnerCategory(nil), categoryOrder...)
}

// Rank returns the zero-based pipeline position, or -1 for unknown values.
func (c OwnerCategory) Rank() int {
	for i, candidate := range categoryOrder {
		if candidate == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is one of the pipeline stages.
func (c OwnerCategory) Valid() bool { return c.Rank() >= 0 }

// Next returns the stage that directly follows c.
func (c OwnerCategory) Next() (OwnerCategory, bool) {
	rank := c.Rank()
	if rank < 0 || rank+1 >= len(categoryOrder) {
		return "", false
	}
	return categoryOrder[rank+1], true
}

// Previous returns the stage that directly precedes c.
func (c OwnerCategory) Previous() (OwnerCategory, bool) {
	rank := c.Rank()
	if rank <= 0 {
		return "", false
	}
	return categoryOrder[rank-1], true
}

// ParseOwnerCategory resolves a case-insensitive stage name.
func ParseOwnerCategory(raw string) (OwnerCategory, error) {
	trimmed := strings.TrimSpace(raw)
	for _, c := range categoryOrder {
		if strings.EqualFold(string(c), trimmed) {
			return c, nil
		}
	}
	return "", ValidationError{Field: "owner_category", Reason: "unknown owner category " + strconv.Quote(trimmed)}
}

// Action labels the kind of event a TransferRecord describes.
type Action string

// Event labels recorded on the ledger.
const (
	ActionRegistered             Action = "Registered by Farmer"
	ActionPurchasedByDistributor Action = "Purchased by Distributor"
	ActionStockedByRetailer      Action = "Stocked by Retailer"
)

// ActionFor maps the category a product enters to the event label.
func ActionFor(c OwnerCategory) (Action, bool) {
	switch c {
	case CategoryFarmer:
		return ActionRegistered, true
	case CategoryDistributor:
		return ActionPurchasedByDistributor, true
	case CategoryRetailer:
		return ActionStockedByRetailer, true
	default:
		return "", false
	}
}

// GenesisOwner is the previous owner recorded for a registration event.
const GenesisOwner = "Genesis"

// Owner names assigned when a product is bought into a later stage. Farmers
// keep their personal name; later stages are recorded by role.
const (
	DistributorOwner = "Distributor"
	RetailerOwner    = "Retailer"
)

// OwnerNameFor returns the owner label a transfer into c assigns.
func OwnerNameFor(c OwnerCategory) (string, bool) {
	switch c {
	case CategoryDistributor:
		return DistributorOwner, true
	case CategoryRetailer:
		return RetailerOwner, true
	default:
		return "", false
	}
}

// ProductRecord is the current state of one product in the ownership index.
type ProductRecord struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	CurrentOwner  string        `json:"current_owner"`
	OwnerCategory OwnerCategory `json:"owner_category"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewProductRecord builds a freshly registered product owned by farmer.
func NewProductRecord(id, name, farmer string) (ProductRecord, error) {
	p := ProductRecord{
		ID:            strings.TrimSpace(id),
		Name:          strings.TrimSpace(name),
		CurrentOwner:  strings.TrimSpace(farmer),
		OwnerCategory: CategoryFarmer,
	}
	if err := p.Validate(); err != nil {
		return ProductRecord{}, err
	}
	return p, nil
}

// Validate checks the field invariants of a product record.
func (p ProductRecord) Validate() error {
	switch {
	case p.ID == "":
		return ValidationError{Field: "id", Reason: "product id is required"}
	case p.Name == "":
		return ValidationError{Field: "product_name", Reason: "product name is required"}
	case p.CurrentOwner == "":
		return ValidationError{Field: "current_owner", Reason: "owner is required"}
	case !p.OwnerCategory.Valid():
		return ValidationError{Field: "owner_category", Reason: "unknown owner category " + strconv.Quote(string(p.OwnerCategory))}
	}
	return nil
}

// TransferRecord is one immutable entry of the transaction log.
type TransferRecord struct {
	Sequence      uint64          `json:"sequence"`
	Timestamp     time.Time       `json:"timestamp"`
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Owner         string          `json:"owner"`
	OwnerCategory OwnerCategory   `json:"owner_category"`
	Price         decimal.Decimal `json:"price"`
	Action        Action          `json:"action"`
	PreviousOwner string          `json:"previous_owner"`
}

// NewTransferRecord describes the event that put product into its current
// state. The product must already carry the new owner and category.
func NewTransferRecord(product ProductRecord, price decimal.Decimal, previousOwner string, at time.Time) (TransferRecord, error) {
	action, ok := ActionFor(product.OwnerCategory)
	if !ok {
		return TransferRecord{}, ValidationError{Field: "owner_category", Reason: "unknown owner category " + strconv.Quote(string(product.OwnerCategory))}
	}
	rec := TransferRecord{
		Timestamp:     at,
		ProductID:     product.ID,
		ProductName:   product.Name,
		Owner:         product.CurrentOwner,
		OwnerCategory: product.OwnerCategory,
		Price:         price,
		Action:        action,
		PreviousOwner: strings.TrimSpace(previousOwner),
	}
	if err := rec.Validate(); err != nil {
		return TransferRecord{}, err
	}
	return rec, nil
}

// Validate checks the field invariants of a ledger entry.
func (r TransferRecord) Validate() error {
	switch {
	case r.ProductID == "":
		return ValidationError{Field: "product_id", Reason: "product id is required"}
	case r.ProductName == "":
		return ValidationError{Field: "product_name", Reason: "product name is required"}
	case r.Owner == "":
		return ValidationError{Field: "owner", Reason: "owner is required"}
	case r.PreviousOwner == "":
		return ValidationError{Field: "previous_owner", Reason: "previous owner is required"}
	case !r.OwnerCategory.Valid():
		return ValidationError{Field: "owner_category", Reason: "unknown owner category " + strconv.Quote(string(r.OwnerCategory))}
	case r.Price.IsNegative():
		return ValidationError{Field: "price", Reason: "price must not be negative"}
	}
	if want, _ := ActionFor(r.OwnerCategory); r.Action != want {
		return ValidationError{Field: "action", Reason: "action " + strconv.Quote(string(r.Action)) + " does not match category " + string(r.OwnerCategory)}
	}
	return nil
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action ChangeAction
	Before ChangePayload
	After  ChangePayload
}

// ChangeAction indicates the type of modification performed.
type ChangeAction string

// Change actions captured by the transaction log of a store transaction.
const (
	ChangeCreate ChangeAction = "create"
	ChangeUpdate ChangeAction = "update"
	// ChangeAppend marks a new ledger entry; ledger entries are never updated.
	ChangeAppend ChangeAction = "append"
)

// Violation reports a rule breach.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}
