package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	blobcore "fairtrace/internal/blob/core"
	"fairtrace/pkg/domain"
)

// ExportPrefix is the blob key prefix shared by every ledger export.
const ExportPrefix = "ledger-exports/"

// ExportTimeLayout renders timestamps the way the ledger table shows them.
const ExportTimeLayout = "2006-01-02 15:04:05"

// Format names an export rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat resolves a case-insensitive format name; empty means JSON.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", domain.ValidationError{Field: "format", Reason: "unsupported export format " + strconv.Quote(raw)}
	}
}

func (f Format) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// CSVHeader lists the ledger table columns in display order.
var CSVHeader = []string{"Timestamp", "ProductID", "ProductName", "Owner", "Price (INR)", "Action", "PreviousOwner"}

// LedgerSource yields the full transaction log.
type LedgerSource interface {
	Ledger(ctx context.Context) ([]domain.TransferRecord, error)
}

// Exporter renders the ledger and stores the artifact in a blob store.
type Exporter struct {
	source LedgerSource
	store  blobcore.Store
	newID  func() string
	now    func() time.Time
}

// NewExporter constructs an exporter writing into store.
func NewExporter(source LedgerSource, store blobcore.Store) *Exporter {
	return &Exporter{
		source: source,
		store:  store,
		newID:  func() string { return uuid.NewString() },
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export snapshots the ledger in the requested format and persists it under
// ExportPrefix.
func (e *Exporter) Export(ctx context.Context, format Format) (blobcore.Info, error) {
	records, err := e.source.Ledger(ctx)
	if err != nil {
		return blobcore.Info{}, err
	}
	var buf bytes.Buffer
	if err := Render(&buf, format, records); err != nil {
		return blobcore.Info{}, err
	}
	key := ExportPrefix + e.newID() + "." + string(format)
	info, err := e.store.Put(ctx, key, &buf, blobcore.PutOptions{
		ContentType: format.contentType(),
		Metadata: map[string]string{
			"format":       string(format),
			"records":      strconv.Itoa(len(records)),
			"generated_at": e.now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return blobcore.Info{}, errors.Wrap(err, "store ledger export")
	}
	return info, nil
}

// List returns every stored export sorted by key.
func (e *Exporter) List(ctx context.Context) ([]blobcore.Info, error) {
	infos, err := e.store.List(ctx, ExportPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "list ledger exports")
	}
	return infos, nil
}

// Open streams one export by file name (the key without ExportPrefix).
func (e *Exporter) Open(ctx context.Context, name string) (blobcore.Info, io.ReadCloser, error) {
	if name == "" || path.Base(name) != name {
		return blobcore.Info{}, nil, domain.ValidationError{Field: "name", Reason: "invalid export name"}
	}
	return e.store.Get(ctx, ExportPrefix+name)
}

type exportRow struct {
	Timestamp     string `json:"timestamp"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Owner         string `json:"owner"`
	Price         string `json:"price_inr"`
	Action        string `json:"action"`
	PreviousOwner string `json:"previous_owner"`
}

func toRow(r domain.TransferRecord) exportRow {
	return exportRow{
		Timestamp:     r.Timestamp.Format(ExportTimeLayout),
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		Owner:         r.Owner,
		Price:         FormatINR(r.Price),
		Action:        string(r.Action),
		PreviousOwner: r.PreviousOwner,
	}
}

// Render writes records to w in the given format.
func Render(w io.Writer, format Format, records []domain.TransferRecord) error {
	switch format {
	case FormatJSON:
		rows := make([]exportRow, 0, len(records))
		for _, r := range records {
			rows = append(rows, toRow(r))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(CSVHeader); err != nil {
			return err
		}
		for _, r := range records {
			row := toRow(r)
			if err := cw.Write([]string{row.Timestamp, row.ProductID, row.ProductName, row.Owner, row.Price, row.Action, row.PreviousOwner}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return errors.Errorf("unsupported export format %q", format)
	}
}

// FormatINR renders an amount with two decimals and comma thousands
// separators, e.g. 1234567.5 -> "1,234,567.50".
func FormatINR(d decimal.Decimal) string {
	r := d.Round(2)
	_, frac, _ := strings.Cut(r.Abs().StringFixed(2), ".")
	out := humanize.BigComma(r.Abs().BigInt()) + "." + frac
	if r.IsNegative() {
		return "-" + out
	}
	return out
}
