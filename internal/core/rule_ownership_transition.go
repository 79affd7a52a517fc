package core

import (
	"context"
	"fmt"

	"fairtrace/pkg/domain"
)

const ownershipTransitionRuleName = "ownership_transition"

// OwnershipTransitionRule blocks product changes that move a product anywhere
// but one stage forward, or that rewrite its identity.
func OwnershipTransitionRule() domain.Rule {
	return ownershipTransitionRule{}
}

type ownershipTransitionRule struct{}

func (ownershipTransitionRule) Name() string { return ownershipTransitionRuleName }

func (ownershipTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityProduct {
			continue
		}
		after, ok := domain.DecodePayload[domain.ProductRecord](change.After)
		if !ok {
			continue
		}
		if !after.OwnerCategory.Valid() {
			res.Violations = append(res.Violations, transitionViolation(after.ID,
				fmt.Sprintf("product %s is set to invalid category %s", after.ID, after.OwnerCategory)))
			continue
		}

		switch change.Action {
		case domain.ChangeCreate:
			if after.OwnerCategory != domain.CategoryFarmer {
				res.Violations = append(res.Violations, transitionViolation(after.ID,
					fmt.Sprintf("product %s must be registered by a farmer, not %s", after.ID, after.OwnerCategory)))
			}
		case domain.ChangeUpdate:
			before, ok := domain.DecodePayload[domain.ProductRecord](change.Before)
			if !ok {
				continue
			}
			if before.Name != after.Name {
				res.Violations = append(res.Violations, transitionViolation(after.ID,
					fmt.Sprintf("product %s name is immutable", after.ID)))
			}
			if before.OwnerCategory == after.OwnerCategory {
				continue
			}
			if next, ok := before.OwnerCategory.Next(); !ok || next != after.OwnerCategory {
				res.Violations = append(res.Violations, transitionViolation(after.ID,
					fmt.Sprintf("cannot move product %s from %s to %s", after.ID, before.OwnerCategory, after.OwnerCategory)))
			}
		}
	}
	return res, nil
}

func transitionViolation(id, message string) domain.Violation {
	return domain.Violation{
		Rule:     ownershipTransitionRuleName,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityProduct,
		EntityID: id,
	}
}
