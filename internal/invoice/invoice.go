// Package invoice renders a completed sale snapshot into the shop's fixed
// invoice layout, as plain lines or as a PDF document.
package invoice

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/money"
)

const (
	marginX     = 14.0
	lineStep    = 6.0
	pageBottom  = 280.0
	titleSize   = 14.0
	bodySize    = 10.0
	walkInLabel = "Walk-in"
)

type Document struct {
	FileName string
	Lines    []string
	PDF      []byte
}

func FileName(saleID string) string {
	return fmt.Sprintf("invoice_%s.pdf", saleID)
}

func CustomerLabel(name string) string {
	if name == "" {
		return walkInLabel
	}
	return name
}

func ItemLine(item domain.CartLine) string {
	return fmt.Sprintf("%s (%s) x%d - %s", item.Name, item.SKU, item.Qty, money.Format(float64(item.Qty)*item.UnitPrice))
}

// Lines returns the invoice text in print order.
func Lines(merchant string, snap domain.InvoiceSnapshot) []string {
	lines := []string{
		merchant,
		"Invoice ID: " + snap.SaleID,
		"Customer: " + CustomerLabel(snap.CustomerLabel),
		"Items:",
	}
	for _, item := range snap.Items {
		lines = append(lines, ItemLine(item))
	}
	lines = append(lines, "Total: "+money.Format(snap.Total))
	return lines
}

// Render builds the text and PDF forms of one invoice.
func Render(merchant string, snap domain.InvoiceSnapshot) (Document, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(merchant+" invoice "+snap.SaleID, true)
	pdf.SetCreationDate(snap.CreatedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "", titleSize)
	pdf.Text(marginX, 18, tr(merchant))
	pdf.SetFontSize(bodySize)
	pdf.Text(marginX, 28, tr("Invoice ID: "+snap.SaleID))
	pdf.Text(marginX, 34, tr("Customer: "+CustomerLabel(snap.CustomerLabel)))

	y := 44.0
	pdf.Text(marginX, y, "Items:")
	y += lineStep
	for _, item := range snap.Items {
		if y > pageBottom {
			pdf.AddPage()
			pdf.SetFontSize(bodySize)
			y = 18
		}
		pdf.Text(marginX, y, tr(ItemLine(item)))
		y += lineStep
	}
	pdf.Text(marginX, y+lineStep, tr("Total: "+money.Format(snap.Total)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Document{}, err
	}
	return Document{
		FileName: FileName(snap.SaleID),
		Lines:    Lines(merchant, snap),
		PDF:      buf.Bytes(),
	}, nil
}
