package compare

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/listing-recon/internal/model"
)

// Missing is the display placeholder for an absent value.
const Missing = "N/A"

// DateLayout is the display layout for date fields.
const DateLayout = "2 Jan 2006"

var symbols = map[string]string{
	"EUR": "€",
	"GBP": "£",
	"USD": "$",
}

// Formatter renders normalized field values for display.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter creates a Formatter for the given ISO 4217 currency code.
// Unknown codes fall back to EUR; codes without a known symbol are shown as
// the code followed by a space.
func NewFormatter(iso string) *Formatter {
	unit, err := currency.ParseISO(strings.TrimSpace(iso))
	if err != nil {
		unit = currency.EUR
	}
	sym, ok := symbols[unit.String()]
	if !ok {
		sym = unit.String() + " "
	}
	return &Formatter{
		printer: message.NewPrinter(language.English),
		symbol:  sym,
	}
}

// Format renders a normalized value of the given type. Nil renders as Missing.
func (f *Formatter) Format(t model.FieldType, v any) string {
	if v == nil {
		return Missing
	}
	switch t {
	case model.FieldCurrency:
		if n, ok := v.(float64); ok {
			return f.symbol + f.number(n)
		}
	case model.FieldNumber:
		if n, ok := v.(float64); ok {
			return f.number(n)
		}
	case model.FieldDate:
		if ts, ok := v.(time.Time); ok {
			return ts.Format(DateLayout)
		}
	case model.FieldRating:
		if s, ok := v.(string); ok {
			return strings.ToUpper(s)
		}
	}
	if s, ok := v.(string); ok {
		return s
	}
	return f.printer.Sprint(v)
}

func (f *Formatter) number(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return f.printer.Sprintf("%d", int64(n))
	}
	return f.printer.Sprintf("%.2f", n)
}
