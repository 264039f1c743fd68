// Package receipt renders the customer's payment receipt as an A5 PDF.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// DefaultCurrency is printed after the amount
const DefaultCurrency = "TZS"

// URLPrefix is where the HTTP server exposes the receipts directory
const URLPrefix = "/receipts/"

const (
	title  = "RISITI YA MALIPO YA WI-FI"
	footer = "Asante kwa kutumia huduma yetu"

	dateLayout = "02/01/2006"
	idLayout   = "2006-01-02_150405"
)

// Data is what a receipt shows
type Data struct {
	FullName    string
	PhoneNumber string
	PlanName    string
	Amount      float64
	Username    string
	Password    string
	// Validity is the access time granted; zero prints an expiry equal to
	// the issue date.
	Validity time.Duration
	IssuedAt time.Time
}

// Receipt locates a generated receipt
type Receipt struct {
	ID        string
	File      string
	URL       string
	ExpiresAt time.Time
}

// Generator writes receipts into a directory served under URLPrefix
type Generator struct {
	dir      string
	currency string
	loc      *time.Location
}

// NewGenerator creates a generator writing into dir. An empty currency uses
// DefaultCurrency.
func NewGenerator(dir, currency string) *Generator {
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	return &Generator{dir: dir, currency: currency, loc: time.Local}
}

// WithLocation sets the time zone used for printed dates and file names
func (g *Generator) WithLocation(loc *time.Location) *Generator {
	if loc != nil {
		g.loc = loc
	}
	return g
}

// Dir returns the output directory
func (g *Generator) Dir() string {
	return g.dir
}

// Generate renders the receipt and writes it to a new file named
// <date>_<time>_<FirstName>.pdf. An existing file is never overwritten.
func (g *Generator) Generate(d Data) (*Receipt, error) {
	issued := d.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	issued = issued.In(g.loc)
	expires := issued.Add(d.Validity)

	var buf bytes.Buffer
	if err := g.render(&buf, d, issued, expires); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, fmt.Errorf("create receipts dir: %w", err)
	}

	base := issued.Format(idLayout) + "_" + firstName(d.FullName)
	id, file, err := writeExclusive(g.dir, base, buf.Bytes())
	if err != nil {
		return nil, err
	}

	return &Receipt{
		ID:        id,
		File:      file,
		URL:       URLPrefix + id + ".pdf",
		ExpiresAt: expires,
	}, nil
}

func (g *Generator) render(buf *bytes.Buffer, d Data, issued, expires time.Time) error {
	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle(title, true)
	pdf.SetCreator("jiconnect", true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	width := pageW - left - right

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(10, 23, 78)
	pdf.CellFormat(width, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	line := func(label, hint, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(10, 23, 78)
		pdf.CellFormat(26, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(width-26, 6, tr(value), "", 1, "L", false, 0, "")
		if hint != "" {
			pdf.SetFont("Helvetica", "", 8)
			pdf.SetTextColor(102, 102, 102)
			pdf.CellFormat(width, 4, "("+hint+")", "", 1, "L", false, 0, "")
		}
		pdf.Ln(1.5)
	}

	line("Jina:", "", d.FullName)
	line("Namba:", "", d.PhoneNumber)
	line("Username:", "Wi-Fi Username", d.Username)
	line("Password:", "", d.Password)
	line("Kifurushi:", "Package", d.PlanName)
	line("Bei:", "Amount", FormatAmount(d.Amount)+" "+g.currency)
	line("Kuanzia:", "Start Date", issued.Format(dateLayout))
	line("Mwisho:", "Expiry", expires.Format(dateLayout))

	pdf.Ln(4)
	pdf.SetFillColor(10, 23, 78)
	pdf.SetTextColor(245, 208, 66)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(width, 9, footer, "", 1, "C", true, 0, "")

	if err := pdf.Output(buf); err != nil {
		return err
	}
	return pdf.Error()
}

// writeExclusive creates dir/base.pdf, or base-2.pdf, base-3.pdf... when the
// name is taken, and returns the chosen id and path.
func writeExclusive(dir, base string, content []byte) (string, string, error) {
	for n := 1; n <= 100; n++ {
		id := base
		if n > 1 {
			id = base + "-" + strconv.Itoa(n)
		}
		file := filepath.Join(dir, id+".pdf")

		f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("create receipt file: %w", err)
		}

		_, werr := f.Write(content)
		cerr := f.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			os.Remove(file)
			return "", "", fmt.Errorf("write receipt file: %w", werr)
		}
		return id, file, nil
	}
	return "", "", fmt.Errorf("no free receipt name for %s", base)
}

// firstName returns the first word of the name with only ASCII letters and
// digits kept, or "Client".
func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return "Client"
	}
	var b strings.Builder
	for _, r := range fields[0] {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Client"
	}
	return b.String()
}

// FormatAmount prints whole amounts without decimals
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
