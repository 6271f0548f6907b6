package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet columns, first row is the header.
const (
	colSKU = iota
	colName
	colDescription
	colPrice
	colStock
	colImage
	minColumns = colStock + 1
)

type importStats struct {
	Rows      int
	Valid     int
	Skipped   int
	Duplicate int
}

func readProductsFromXLSX(filePath string) ([]model.Product, importStats, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, importStats{}, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, importStats{}, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, importStats{}, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, importStats{}, fmt.Errorf("no data found in XLSX file")
	}

	products, stats := parseProductRows(rows[1:])
	return products, stats, nil
}

// parseProductRows converts sheet rows into products. Invalid rows are
// skipped; a repeated SKU keeps the first occurrence.
func parseProductRows(rows [][]string) ([]model.Product, importStats) {
	stats := importStats{Rows: len(rows)}
	seen := make(map[string]bool)
	products := make([]model.Product, 0, len(rows))

	for _, row := range rows {
		if len(row) < minColumns {
			stats.Skipped++
			continue
		}

		sku := strings.ToUpper(strings.TrimSpace(row[colSKU]))
		name := strings.TrimSpace(row[colName])
		if sku == "" || name == "" {
			stats.Skipped++
			continue
		}

		price, err := decimal.NewFromString(strings.TrimSpace(row[colPrice]))
		if err != nil || price.IsNegative() {
			stats.Skipped++
			continue
		}

		stock, err := strconv.Atoi(strings.TrimSpace(row[colStock]))
		if err != nil || stock < 0 {
			stats.Skipped++
			continue
		}

		if seen[sku] {
			stats.Duplicate++
			continue
		}
		seen[sku] = true

		product := model.Product{
			SKU:         sku,
			Name:        name,
			Description: strings.TrimSpace(row[colDescription]),
			Price:       price.Round(2),
			Stock:       stock,
		}
		if len(row) > colImage {
			product.ImageURL = strings.TrimSpace(row[colImage])
		}
		products = append(products, product)
	}

	stats.Valid = len(products)
	return products, stats
}
