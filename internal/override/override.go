// Package override loads authoritative per-SKU prices from an Excel workbook.
// An override price replaces whatever price survivorship picked for a cluster.
package override

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/normalize"
)

// Options locate the price sheet and its columns.
type Options struct {
	Path        string
	SheetName   string // first sheet when empty
	SKUColumn   string // header text, case-insensitive
	PriceColumn string
}

// Prices maps SKU to its authoritative price.
type Prices map[string]float64

// ForCluster returns the override for a cluster whose members carry the given
// SKU hints, in ingestion order. When several members have an entry the last
// one wins.
func (p Prices) ForCluster(skus []string) *float64 {
	var out *float64
	for _, sku := range skus {
		if v, ok := p[strings.TrimSpace(sku)]; ok {
			price := v
			out = &price
		}
	}
	return out
}

// Load reads the workbook. The first row must be a header naming the SKU and
// price columns. Rows with no SKU or an unparseable price are skipped. An
// empty path yields no overrides.
func Load(opts Options) (Prices, error) {
	prices := make(Prices)
	if opts.Path == "" {
		return prices, nil
	}
	if opts.SKUColumn == "" {
		opts.SKUColumn = "sku"
	}
	if opts.PriceColumn == "" {
		opts.PriceColumn = "price"
	}

	f, err := xlsx.OpenFile(opts.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "override: open %s", opts.Path)
	}
	sheet, err := getSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return prices, nil
	}

	header := rowToStrings(sheet.Rows[0])
	skuIdx := columnIndex(header, opts.SKUColumn)
	priceIdx := columnIndex(header, opts.PriceColumn)
	if skuIdx < 0 || priceIdx < 0 {
		return nil, eris.Errorf("override: sheet %q lacks %q or %q column", sheet.Name, opts.SKUColumn, opts.PriceColumn)
	}

	skipped := 0
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if skuIdx >= len(cells) || priceIdx >= len(cells) {
			skipped++
			continue
		}
		sku := strings.TrimSpace(cells[skuIdx])
		price, ok := normalize.NormalizePrice(cells[priceIdx])
		if sku == "" || !ok {
			skipped++
			continue
		}
		prices[sku] = price
	}

	zap.L().Info("override: loaded price sheet",
		zap.String("path", opts.Path),
		zap.Int("prices", len(prices)),
		zap.Int("skipped", skipped),
	)
	return prices, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("override: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("override: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
