// Package export renders seller data as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/safar/resale-market/internal/models"
	"github.com/tealeg/xlsx"
)

const ProductsSheet = "Products"

var productHeaders = []string{
	"ID", "Title", "Category", "Brand", "Size", "Condition",
	"Price", "Quantity", "Active", "Sold", "Created",
}

// WriteSellerProducts writes products as an xlsx workbook with one sheet.
func WriteSellerProducts(w io.Writer, products []models.Product) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(ProductsSheet)
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range productHeaders {
		header.AddCell().SetString(h)
	}

	for _, p := range products {
		row := sheet.AddRow()

		row.AddCell().SetInt64(p.ID)
		row.AddCell().SetString(p.Title)
		row.AddCell().SetString(categoryName(p))
		row.AddCell().SetString(brandName(p))
		row.AddCell().SetString(p.DisplaySize())
		row.AddCell().SetString(string(p.Condition))

		price, _ := p.Price.Float64()
		row.AddCell().SetFloatWithFormat(price, "0.00")

		row.AddCell().SetInt(p.Quantity)
		row.AddCell().SetBool(p.IsActive)
		row.AddCell().SetBool(p.IsSold)
		row.AddCell().SetString(p.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func categoryName(p models.Product) string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}

func brandName(p models.Product) string {
	if p.Brand == nil {
		return ""
	}
	return p.Brand.Name
}
