package inventory

import (
	"fmt"
	"io"
	"strings"

	"github.com/bhavnindersingh/RecipeManager/internal/costing"

	"github.com/xuri/excelize/v2"
)

// ImportRow is one parsed spreadsheet line. Row is the 1-based sheet row.
type ImportRow struct {
	Row   int
	Input IngredientInput
	Err   string
}

var importHeaders = map[string]string{
	"name":          "name",
	"ingredient":    "name",
	"unit":          "unit",
	"cost":          "cost",
	"cost (₹)":      "cost",
	"cost per unit": "cost",
	"min stock":     "min",
	"minimum stock": "min",
	"category":      "category",
	"vendor name":   "vendor_name",
	"vendor":        "vendor_name",
	"vendor phone":  "vendor_phone",
}

// ParseIngredientSheet reads the first sheet of an .xlsx workbook. The first
// row is the header; columns may come in any order.
func ParseIngredientSheet(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %s has no data rows", sheets[0])
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := importHeaders[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("header row must contain a Name column")
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []ImportRow
	for n, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		in := IngredientInput{
			Name:        cell(row, "name"),
			Unit:        cell(row, "unit"),
			Category:    cell(row, "category"),
			VendorName:  cell(row, "vendor_name"),
			VendorPhone: cell(row, "vendor_phone"),
		}
		pr := ImportRow{Row: n + 2, Input: in}

		cost, costErr := parseNumber(cell(row, "cost"))
		minStock, minErr := parseNumber(cell(row, "min"))
		switch {
		case costErr != nil:
			pr.Err = "Cost is not a number"
		case minErr != nil:
			pr.Err = "Min Stock is not a number"
		}
		pr.Input.Cost = cost
		pr.Input.MinimumStock = minStock
		if pr.Err == "" {
			if err := pr.Input.normalize(); err != nil {
				pr.Err = err.Error()
			}
		}
		out = append(out, pr)
	}
	return out, nil
}

// parseNumber accepts "", "120", "1,250.50" and "₹ 40".
func parseNumber(s string) (float64, error) {
	s = strings.NewReplacer("₹", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, nil
	}
	v := costing.Float(s)
	if v == 0 && strings.Trim(s, "0.") != "" {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
