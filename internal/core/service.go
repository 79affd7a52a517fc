package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	memory "fairtrace/internal/infra/persistence/memory"
	"fairtrace/pkg/domain"
)

// RegisterInput carries a farmer's registration of a new product.
type RegisterInput struct {
	FarmerName  string          `json:"farmer_name"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
}

// ProductSummary is the id/name pair used to populate selection lists.
type ProductSummary struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

// Service exposes the supply-chain operations over a transactional store.
type Service struct {
	store   domain.PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	archive domain.ArchiveSink
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:   store,
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
		clock:   o.clock,
		archive: o.archive,
	}
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// run instruments op with a span, a metrics observation and a log line.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	duration := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	switch {
	case err == nil:
		s.logger.Debug("operation completed", "operation", op, "duration", duration)
	case isRejection(err):
		s.logger.Warn("operation rejected", "operation", op, "error", err)
	default:
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	return err
}

// isRejection reports errors caused by caller input rather than a fault.
func isRejection(err error) bool {
	var (
		verr domain.ValidationError
		nerr domain.NotFoundError
		terr domain.InvalidTransitionError
		rerr domain.RuleViolationError
	)
	return errors.As(err, &verr) || errors.As(err, &nerr) || errors.As(err, &terr) || errors.As(err, &rerr)
}

// archiveTimeout bounds a single mirror write.
const archiveTimeout = 10 * time.Second

// archiveCommitted mirrors freshly committed entries. It runs after the
// commit, so a failing sink is reported but cannot undo the transfer. Caller
// cancellation does not reach the sink.
func (s *Service) archiveCommitted(ctx context.Context, records []domain.TransferRecord) {
	if s.archive == nil || len(records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	start := s.clock.Now()
	err := s.archive.Archive(ctx, records)
	s.metrics.Observe(ctx, "archive", err == nil, s.clock.Now().Sub(start))
	if err != nil {
		s.logger.Error("archive ledger entries", "error", err, "count", len(records), "first_sequence", records[0].Sequence)
	}
}

func logWarnings(logger Logger, op string, res domain.Result) {
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "message", v.Message)
	}
}

// Register indexes a new product owned by the farmer and logs its
// registration with Genesis as the previous owner.
func (s *Service) Register(ctx context.Context, in RegisterInput) (ProductRecord, error) {
	var (
		created  ProductRecord
		appended TransferRecord
	)
	err := s.run(ctx, "register", func(ctx context.Context) error {
		farmer := strings.TrimSpace(in.FarmerName)
		name := strings.TrimSpace(in.ProductName)
		switch {
		case farmer == "":
			return domain.ValidationError{Field: "farmer_name", Reason: "farmer name is required"}
		case name == "":
			return domain.ValidationError{Field: "product_name", Reason: "product name is required"}
		case !in.Price.IsPositive():
			return domain.ValidationError{Field: "price", Reason: "base price must be greater than zero"}
		}
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			product, err := domain.NewProductRecord(tx.NextProductID(), name, farmer)
			if err != nil {
				return err
			}
			if created, err = tx.CreateProduct(product); err != nil {
				return err
			}
			rec, err := domain.NewTransferRecord(created, in.Price, domain.GenesisOwner, tx.Now())
			if err != nil {
				return err
			}
			appended, err = tx.AppendTransfer(rec)
			return err
		})
		if err != nil {
			return err
		}
		logWarnings(s.logger, "register", res)
		return nil
	})
	if err != nil {
		return ProductRecord{}, err
	}
	s.logger.Info("product registered", "product_id", created.ID, "farmer", created.CurrentOwner, "price", appended.Price.StringFixed(2))
	s.archiveCommitted(ctx, []domain.TransferRecord{appended})
	return created, nil
}

// TransferToDistributor moves a Farmer-owned product to the distributor.
func (s *Service) TransferToDistributor(ctx context.Context, productID string, price decimal.Decimal) (ProductRecord, error) {
	return s.transfer(ctx, "transfer_to_distributor", productID, price, domain.CategoryDistributor)
}

// TransferToRetailer moves a Distributor-owned product to the retailer.
func (s *Service) TransferToRetailer(ctx context.Context, productID string, price decimal.Decimal) (ProductRecord, error) {
	return s.transfer(ctx, "transfer_to_retailer", productID, price, domain.CategoryRetailer)
}

// PurchaseFromFarmer is the distributor-side name of TransferToDistributor.
func (s *Service) PurchaseFromFarmer(ctx context.Context, productID string, price decimal.Decimal) (ProductRecord, error) {
	return s.TransferToDistributor(ctx, productID, price)
}

// PurchaseFromDistributor is the retailer-side name of TransferToRetailer.
func (s *Service) PurchaseFromDistributor(ctx context.Context, productID string, price decimal.Decimal) (ProductRecord, error) {
	return s.TransferToRetailer(ctx, productID, price)
}

func (s *Service) transfer(ctx context.Context, op, productID string, price decimal.Decimal, target domain.OwnerCategory) (ProductRecord, error) {
	var (
		updated  ProductRecord
		appended TransferRecord
	)
	productID = strings.TrimSpace(productID)
	err := s.run(ctx, op, func(ctx context.Context) error {
		if price.IsNegative() {
			return domain.ValidationError{Field: "price", Reason: "price must not be negative"}
		}
		from, _ := target.Previous()
		owner, _ := domain.OwnerNameFor(target)
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			current, ok := tx.FindProduct(productID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
			}
			if current.OwnerCategory != from {
				return domain.InvalidTransitionError{ProductID: productID, From: current.OwnerCategory, To: target}
			}
			previousOwner := current.CurrentOwner
			var err error
			updated, err = tx.UpdateProduct(productID, func(p *ProductRecord) error {
				p.CurrentOwner = owner
				p.OwnerCategory = target
				return nil
			})
			if err != nil {
				return err
			}
			rec, err := domain.NewTransferRecord(updated, price, previousOwner, tx.Now())
			if err != nil {
				return err
			}
			appended, err = tx.AppendTransfer(rec)
			return err
		})
		if err != nil {
			return err
		}
		logWarnings(s.logger, op, res)
		return nil
	})
	if err != nil {
		return ProductRecord{}, err
	}
	s.logger.Info("ownership transferred", "product_id", updated.ID, "from", appended.PreviousOwner, "to", updated.CurrentOwner, "price", appended.Price.StringFixed(2))
	s.archiveCommitted(ctx, []domain.TransferRecord{appended})
	return updated, nil
}

// Get returns the current index entry for productID.
func (s *Service) Get(ctx context.Context, productID string) (ProductRecord, error) {
	var product ProductRecord
	err := s.run(ctx, "get_product", func(context.Context) error {
		p, ok := s.store.GetProduct(strings.TrimSpace(productID))
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
		}
		product = p
		return nil
	})
	return product, err
}

// ListByCategory returns products currently in category, in registration order.
func (s *Service) ListByCategory(ctx context.Context, category OwnerCategory) ([]ProductRecord, error) {
	var out []ProductRecord
	err := s.run(ctx, "list_by_category", func(ctx context.Context) error {
		if !category.Valid() {
			return domain.ValidationError{Field: "owner_category", Reason: "unknown owner category " + string(category)}
		}
		return s.store.View(ctx, func(v domain.TransactionView) error {
			out = v.ListProductsByCategory(category)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListAvailable lists the products a buyer at the next stage can pick from.
func (s *Service) ListAvailable(ctx context.Context, category OwnerCategory) ([]ProductSummary, error) {
	products, err := s.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]ProductSummary, 0, len(products))
	for _, p := range products {
		out = append(out, ProductSummary{ProductID: p.ID, ProductName: p.Name})
	}
	return out, nil
}

// History filters the log by product in append order. Products without
// history, known or not, yield an empty slice.
func (s *Service) History(ctx context.Context, productID string) ([]TransferRecord, error) {
	var out []TransferRecord
	err := s.run(ctx, "history", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			out = v.TransfersFor(strings.TrimSpace(productID))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Trace reconstructs and verifies the ownership history of productID.
func (s *Service) Trace(ctx context.Context, productID string) (TraceReport, error) {
	var report TraceReport
	productID = strings.TrimSpace(productID)
	err := s.run(ctx, "trace", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			product, ok := v.FindProduct(productID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
			}
			records := v.TransfersFor(productID)
			if err := VerifyChain(productID, records); err != nil {
				return err
			}
			if n := len(records); n > 0 && records[n-1].Owner != product.CurrentOwner {
				return domain.ChainIntegrityError{ProductID: productID, Index: n - 1, Expected: product.CurrentOwner, Got: records[n-1].Owner}
			}
			report = buildTraceReport(product, records)
			return nil
		})
	})
	return report, err
}

// Ledger returns every log entry in append order.
func (s *Service) Ledger(ctx context.Context) ([]TransferRecord, error) {
	var out []TransferRecord
	err := s.run(ctx, "ledger", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			out = v.ListTransfers()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []TransferRecord{}
	}
	return out, nil
}
