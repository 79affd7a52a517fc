package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input: empty names, bad prices, unknown
// categories, or ledger entries referencing unindexed products.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when an identifier is not present in the index.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidTransitionError is returned when a transfer is attempted from the
// wrong owner category.
type InvalidTransitionError struct {
	ProductID string
	From      OwnerCategory
	To        OwnerCategory
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("product %s cannot move from %s to %s", e.ProductID, e.From, e.To)
}

// ChainIntegrityError reports a reconstructed history whose ownership chain
// is broken at Index.
type ChainIntegrityError struct {
	ProductID string
	Index     int
	Expected  string
	Got       string
}

func (e ChainIntegrityError) Error() string {
	return fmt.Sprintf("ownership chain of %s broken at step %d: expected %q, got %q", e.ProductID, e.Index+1, e.Expected, e.Got)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Rule+": "+v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}
