package export

import (
	"fmt"
	"io"
	"strings"

	"catalog-migration-service/internal/catalog"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the review workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	ProductsSheet = "Products"
	VariantsSheet = "Variants"
)

var productColumns = []string{
	"Title", "SKU", "Vendor", "Product Type", "Status", "Tags",
	"Options", "Variants", "Media", "Existing Product ID",
}

var variantColumns = []string{"Product Title", "SKU", "Price", "Options", "Image"}

// WritePreview writes the formatted products as a review workbook with one
// row per product and one row per variant
func WritePreview(w io.Writer, products []*catalog.CanonicalProduct) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ProductsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(VariantsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, ProductsSheet, productColumns, headerStyle); err != nil {
		return err
	}
	if err := writeHeader(f, VariantsSheet, variantColumns, headerStyle); err != nil {
		return err
	}

	variantRow := 2
	for i, p := range products {
		row := []interface{}{
			p.Title,
			p.SKU,
			p.Vendor,
			p.ProductType,
			string(p.Status),
			strings.Join(p.Tags, ", "),
			formatOptions(p.Options),
			len(p.Variants),
			len(p.Media),
			p.ExistingDestinationID,
		}
		if err := writeRow(f, ProductsSheet, i+2, row); err != nil {
			return err
		}

		for _, v := range p.Variants {
			row := []interface{}{
				p.Title,
				v.SKU,
				v.Price,
				formatSelection(v.OptionValues),
				v.Media.OriginalSource,
			}
			if err := writeRow(f, VariantsSheet, variantRow, row); err != nil {
				return err
			}
			variantRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	for i, name := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, 20); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// formatOptions renders options as "Color: Red, Blue; Size: M"
func formatOptions(options []catalog.ProductOption) string {
	parts := make([]string, 0, len(options))
	for _, o := range options {
		values := make([]string, 0, len(o.Values))
		for _, v := range o.Values {
			values = append(values, v.Name)
		}
		parts = append(parts, o.Name+": "+strings.Join(values, ", "))
	}
	return strings.Join(parts, "; ")
}

// formatSelection renders a variant's option values as "Color=Red, Size=M"
func formatSelection(values []catalog.VariantOptionValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.OptionName+"="+v.Name)
	}
	return strings.Join(parts, ", ")
}
