package core

import (
	"time"

	"github.com/shopspring/decimal"

	"fairtrace/pkg/domain"
)

// TraceStep is one hop of a product's ownership history.
type TraceStep struct {
	Step          int             `json:"step"`
	Action        domain.Action   `json:"action"`
	Owner         string          `json:"owner"`
	Price         decimal.Decimal `json:"price"`
	Timestamp     time.Time       `json:"timestamp"`
	PreviousOwner string          `json:"previous_owner"`
}

// TraceReport is the consumer-facing view of a product's provenance.
type TraceReport struct {
	ProductID     string               `json:"product_id"`
	ProductName   string               `json:"product_name"`
	CurrentOwner  string               `json:"current_owner"`
	OwnerCategory domain.OwnerCategory `json:"owner_category"`
	Steps         []TraceStep          `json:"steps"`
}

// VerifyChain checks that records, in append order, form one unbroken
// ownership chain for productID starting at Genesis with the owner category
// advancing exactly one stage per hop. An empty history is trivially valid.
func VerifyChain(productID string, records []domain.TransferRecord) error {
	expectedPrev := domain.GenesisOwner
	expectedCategory := domain.CategoryFarmer
	for i, rec := range records {
		if rec.ProductID != productID {
			return domain.ChainIntegrityError{ProductID: productID, Index: i, Expected: productID, Got: rec.ProductID}
		}
		if rec.PreviousOwner != expectedPrev {
			return domain.ChainIntegrityError{ProductID: productID, Index: i, Expected: expectedPrev, Got: rec.PreviousOwner}
		}
		if rec.OwnerCategory != expectedCategory {
			return domain.ChainIntegrityError{ProductID: productID, Index: i, Expected: string(expectedCategory), Got: string(rec.OwnerCategory)}
		}
		expectedPrev = rec.Owner
		next, ok := rec.OwnerCategory.Next()
		if !ok && i < len(records)-1 {
			return domain.ChainIntegrityError{ProductID: productID, Index: i + 1, Expected: "end of chain", Got: string(records[i+1].OwnerCategory)}
		}
		expectedCategory = next
	}
	return nil
}

func buildTraceReport(product domain.ProductRecord, records []domain.TransferRecord) TraceReport {
	report := TraceReport{
		ProductID:     product.ID,
		ProductName:   product.Name,
		CurrentOwner:  product.CurrentOwner,
		OwnerCategory: product.OwnerCategory,
		Steps:         make([]TraceStep, 0, len(records)),
	}
	for i, rec := range records {
		report.Steps = append(report.Steps, TraceStep{
			Step:          i + 1,
			Action:        rec.Action,
			Owner:         rec.Owner,
			Price:         rec.Price,
			Timestamp:     rec.Timestamp,
			PreviousOwner: rec.PreviousOwner,
		})
	}
	return report
}
