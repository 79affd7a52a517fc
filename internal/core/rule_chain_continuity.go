package core

import (
	"context"
	"fmt"

	"fairtrace/pkg/domain"
)

const chainContinuityRuleName = "chain_continuity"

// ChainContinuityRule checks every appended ledger entry against the entries
// already logged for the same product: the first entry starts at Genesis and
// each later entry names the previous owner it took the product from.
func ChainContinuityRule() domain.Rule {
	return chainContinuityRule{}
}

type chainContinuityRule struct{}

func (chainContinuityRule) Name() string { return chainContinuityRuleName }

func (chainContinuityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityTransfer || change.Action != domain.ChangeAppend {
			continue
		}
		rec, ok := domain.DecodePayload[domain.TransferRecord](change.After)
		if !ok {
			continue
		}
		product, ok := view.FindProduct(rec.ProductID)
		if !ok {
			res.Violations = append(res.Violations, continuityViolation(rec,
				fmt.Sprintf("ledger entry %d references unknown product %s", rec.Sequence, rec.ProductID)))
			continue
		}

		history := view.TransfersFor(rec.ProductID)
		pos := -1
		for i, candidate := range history {
			if candidate.Sequence == rec.Sequence {
				pos = i
				break
			}
		}
		if pos < 0 {
			continue
		}

		expectedPrev := domain.GenesisOwner
		expectedCategory := domain.CategoryFarmer
		if pos > 0 {
			prior := history[pos-1]
			expectedPrev = prior.Owner
			next, ok := prior.OwnerCategory.Next()
			if !ok {
				res.Violations = append(res.Violations, continuityViolation(rec,
					fmt.Sprintf("product %s already reached %s", rec.ProductID, prior.OwnerCategory)))
				continue
			}
			expectedCategory = next
		}
		if rec.PreviousOwner != expectedPrev {
			res.Violations = append(res.Violations, continuityViolation(rec,
				fmt.Sprintf("ledger entry %d for %s names previous owner %q, expected %q", rec.Sequence, rec.ProductID, rec.PreviousOwner, expectedPrev)))
		}
		if rec.OwnerCategory != expectedCategory {
			res.Violations = append(res.Violations, continuityViolation(rec,
				fmt.Sprintf("ledger entry %d for %s moves to %s, expected %s", rec.Sequence, rec.ProductID, rec.OwnerCategory, expectedCategory)))
		}
		if pos == len(history)-1 && (product.CurrentOwner != rec.Owner || product.OwnerCategory != rec.OwnerCategory) {
			res.Violations = append(res.Violations, continuityViolation(rec,
				fmt.Sprintf("latest ledger entry for %s disagrees with index (%s/%s vs %s/%s)",
					rec.ProductID, rec.Owner, rec.OwnerCategory, product.CurrentOwner, product.OwnerCategory)))
		}
	}
	return res, nil
}

func continuityViolation(rec domain.TransferRecord, message string) domain.Violation {
	return domain.Violation{
		Rule:     chainContinuityRuleName,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityTransfer,
		EntityID: rec.ProductID,
	}
}
