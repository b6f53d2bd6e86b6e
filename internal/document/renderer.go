// Package document renders invoice documents as plain text files. The
// layout is deliberately simple so the file doubles as the email body;
// nothing downstream parses it.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parkhaus/garage-api/internal/model"
)

// TextRenderer writes one text file per invoice into Dir, named after
// the invoice number. Rendering the same invoice again overwrites the
// previous file, which is how lazy regeneration works.
type TextRenderer struct {
	Dir string
}

func NewTextRenderer(dir string) *TextRenderer { return &TextRenderer{Dir: dir} }

// Render writes the document and returns its path.
func (r *TextRenderer) Render(inv model.Invoice, h model.ParkingHistory) (string, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}

	var b strings.Builder
	line := strings.Repeat("=", 46)
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "              PARKING INVOICE\n")
	fmt.Fprintf(&b, "%s\n\n", line)
	fmt.Fprintf(&b, "Invoice number : %s\n", inv.InvoiceNumber)
	fmt.Fprintf(&b, "Issue date     : %s\n", inv.IssueDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Due date       : %s\n\n", inv.DueDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Customer       : %s\n", inv.CustomerName)
	fmt.Fprintf(&b, "Email          : %s\n\n", inv.CustomerEmail)
	fmt.Fprintf(&b, "Vehicle        : %s %s (%s)\n", h.VehicleBrand, h.VehicleModel, h.LicensePlate)
	fmt.Fprintf(&b, "Spot           : floor %d, %s\n", h.Floor, h.Label)
	fmt.Fprintf(&b, "Parked from    : %s\n", h.StartTime.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Parked until   : %s\n", h.EndTime.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Duration       : %s\n\n", h.DurationFormatted())
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "AMOUNT DUE     : %d HUF\n", inv.AmountHUF)
	fmt.Fprintf(&b, "%s\n", line)

	path := filepath.Join(r.Dir, inv.InvoiceNumber+".txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}
	return path, nil
}
