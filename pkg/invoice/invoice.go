// Package invoice renders order invoices as PDF documents with a QR code
// carrying the order token and total.
package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

type Line struct {
	Name      string
	Color     string
	Size      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Total is unit price x quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Charge struct {
	Label  string
	Amount decimal.Decimal
}

type Invoice struct {
	Number        string
	IssuedAt      time.Time
	CustomerName  string
	CustomerEmail string
	Address       string
	Currency      string
	Lines         []Line
	Charges       []Charge
	Total         decimal.Decimal
}

// QRPayload is the text encoded in the invoice QR code.
func (inv Invoice) QRPayload() string {
	return fmt.Sprintf("%s|%s|%s", inv.Number, inv.Total.StringFixed(2), inv.IssuedAt.UTC().Format(time.RFC3339))
}

// Renderer produces PDF bytes for an invoice.
type Renderer struct {
	storeName string
}

func NewRenderer(storeName string) *Renderer {
	if storeName == "" {
		storeName = "Merch Store"
	}
	return &Renderer{storeName: storeName}
}

func (r *Renderer) Render(inv Invoice) ([]byte, error) {
	if inv.Number == "" {
		return nil, errors.New("invoice number required")
	}
	if len(inv.Lines) == 0 {
		return nil, errors.New("invoice has no lines")
	}

	qrPNG, err := qrcode.Encode(inv.QRPayload(), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", inv.Number), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, r.storeName)
	pdf.Ln(10)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Tax Invoice")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice: %s", inv.Number))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", inv.IssuedAt.Format("02 Jan 2006")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Billed to: %s <%s>", inv.CustomerName, inv.CustomerEmail))
	pdf.Ln(6)
	pdf.MultiCell(110, 6, fmt.Sprintf("Ship to: %s", inv.Address), "", "L", false)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 20, 35, 35, false, opts, 0, "")
	pdf.Ln(10)

	widths := []float64{80, 25, 20, 15, 25, 25}
	pdf.SetFont("Arial", "B", 11)
	for i, header := range []string{"Item", "Color", "Size", "Qty", "Price", "Amount"} {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, line := range inv.Lines {
		pdf.CellFormat(widths[0], 7, line.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, line.Color, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, line.Size, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 7, fmt.Sprintf("%d", line.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, line.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 7, line.Total().StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	labelWidth := widths[0] + widths[1] + widths[2] + widths[3] + widths[4]
	for _, charge := range inv.Charges {
		pdf.CellFormat(labelWidth, 7, charge.Label, "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 7, charge.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(labelWidth, 8, fmt.Sprintf("Total (%s)", inv.Currency), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[5], 8, inv.Total.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
