package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/service/inventory"
	"storefront/internal/store"
)

// RestockImporter reads `sku,quantity` CSV rows and returns the quantities to
// stock through the inventory ledger in a single unit of work.
type RestockImporter struct {
	reader *csv.Reader
	store  store.Store
	ledger *inventory.Ledger
}

func NewRestockImporter(r io.Reader, st store.Store, ledger *inventory.Ledger) *RestockImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &RestockImporter{reader: csvr, store: st, ledger: ledger}
}

type restockRow struct {
	Line     int
	SKU      string
	Quantity int
}

// Run applies every row or none. It returns the number of rows applied.
func (i *RestockImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range []string{"sku", "quantity"} {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []restockRow
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read row %d: %w", line, err)
		}
		row, ok, err := parseRow(record, index, line)
		if err != nil {
			return 0, err
		}
		if ok {
			rows = append(rows, row)
		}
	}

	err = i.store.WithinTx(ctx, func(tx store.Tx) error {
		for _, row := range rows {
			p, err := tx.Products().GetBySKU(ctx, row.SKU)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("row %d: unknown sku %q: %w", row.Line, row.SKU, err)
				}
				return fmt.Errorf("row %d: %w", row.Line, err)
			}
			if err := i.ledger.Release(ctx, tx.Products(), p.ID, row.Quantity); err != nil {
				return fmt.Errorf("row %d: restock %q: %w", row.Line, row.SKU, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int, line int) (restockRow, bool, error) {
	sku := pick(record, index, "sku")
	qtyStr := pick(record, index, "quantity")
	if sku == "" && qtyStr == "" {
		return restockRow{}, false, nil
	}
	if sku == "" {
		return restockRow{}, false, fmt.Errorf("row %d: %w", line, domain.Invalid("sku", "required"))
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil || qty <= 0 {
		return restockRow{}, false, fmt.Errorf("row %d: %w", line, domain.Invalid("quantity", "must be a positive integer"))
	}
	return restockRow{Line: line, SKU: sku, Quantity: qty}, true, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
