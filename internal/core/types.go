package core

import "fairtrace/pkg/domain"

type (
	EntityType             = domain.EntityType
	OwnerCategory          = domain.OwnerCategory
	Action                 = domain.Action
	ProductRecord          = domain.ProductRecord
	TransferRecord         = domain.TransferRecord
	Change                 = domain.Change
	Violation              = domain.Violation
	Result                 = domain.Result
	Severity               = domain.Severity
	RulesEngine            = domain.RulesEngine
	Rule                   = domain.Rule
	ValidationError        = domain.ValidationError
	NotFoundError          = domain.NotFoundError
	InvalidTransitionError = domain.InvalidTransitionError
	ChainIntegrityError    = domain.ChainIntegrityError
	RuleViolationError     = domain.RuleViolationError
)

const (
	EntityProduct  = domain.EntityProduct
	EntityTransfer = domain.EntityTransfer
)

const (
	CategoryFarmer      = domain.CategoryFarmer
	CategoryDistributor = domain.CategoryDistributor
	CategoryRetailer    = domain.CategoryRetailer
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)
