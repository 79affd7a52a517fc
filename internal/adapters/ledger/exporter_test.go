package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobcore "fairtrace/internal/blob/core"
	blobmem "fairtrace/internal/infra/blob/memory"
	"fairtrace/pkg/domain"
)

type staticLedger []domain.TransferRecord

func (s staticLedger) Ledger(context.Context) ([]domain.TransferRecord, error) { return s, nil }

func sampleRecords() staticLedger {
	at := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	return staticLedger{
		{Sequence: 1, Timestamp: at, ProductID: "PROD-0001", ProductName: "Coffee", Owner: "Ram", OwnerCategory: domain.CategoryFarmer,
			Price: decimal.RequireFromString("1250.5"), Action: domain.ActionRegistered, PreviousOwner: domain.GenesisOwner},
		{Sequence: 2, Timestamp: at.Add(time.Minute), ProductID: "PROD-0001", ProductName: "Coffee", Owner: domain.DistributorOwner,
			OwnerCategory: domain.CategoryDistributor, Price: decimal.NewFromInt(1500), Action: domain.ActionPurchasedByDistributor, PreviousOwner: "Ram"},
	}
}

func TestFormatINR(t *testing.T) {
	cases := map[string]string{
		"0":          "0.00",
		"5":          "5.00",
		"100.5":      "100.50",
		"999.999":    "1,000.00",
		"1234":       "1,234.00",
		"1234567.89": "1,234,567.89",
		"-98765.4":   "-98,765.40",
		"-0.001":     "0.00",
		// past float64 precision
		"12345678901234567.89": "12,345,678,901,234,567.89",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatINR(decimal.RequireFromString(in)), in)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	f, err = ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	_, err = ParseFormat("parquet")
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "format", verr.Field)
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatCSV, sampleRecords()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"2025-03-04 09:30:00", "PROD-0001", "Coffee", "Ram", "1,250.50", "Registered by Farmer", "Genesis"}, rows[1])
	assert.Equal(t, "1,500.00", rows[2][4])
	assert.Equal(t, "Ram", rows[2][6])
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, nil))
	assert.JSONEq(t, `[]`, buf.String())

	buf.Reset()
	require.NoError(t, Render(&buf, FormatJSON, sampleRecords()))
	var rows []exportRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Purchased by Distributor", rows[1].Action)

	require.Error(t, Render(&buf, Format("xml"), nil))
}

func TestExporterStoresArtifacts(t *testing.T) {
	ctx := context.Background()
	store := blobmem.New()
	exp := NewExporter(sampleRecords(), store)
	ids := []string{"b-second", "a-first"}
	exp.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	info, err := exp.Export(ctx, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "ledger-exports/b-second.csv", info.Key)
	assert.Equal(t, "text/csv", info.ContentType)
	assert.Equal(t, "2", info.Metadata["records"])

	_, err = exp.Export(ctx, FormatJSON)
	require.NoError(t, err)

	_, err = store.Put(ctx, "unrelated", bytes.NewReader(nil), blobcore.PutOptions{})
	require.NoError(t, err)
	list, err := exp.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ledger-exports/a-first.json", list[0].Key)

	got, body, err := exp.Open(ctx, "b-second.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	_ = body.Close()
	assert.Equal(t, got.Size, int64(len(data)))
	assert.Contains(t, string(data), "Timestamp,ProductID")

	_, _, err = exp.Open(ctx, "missing.csv")
	require.ErrorIs(t, err, blobcore.ErrNotFound)
	_, _, err = exp.Open(ctx, "../secret")
	require.Error(t, err)
}
