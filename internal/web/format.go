package web

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// AmountFormatter renders whole-unit prices for one locale and currency,
// without fraction digits.
type AmountFormatter struct {
	printer *message.Printer
	symbol  string
}

// NewAmountFormatter resolves the currency symbol for locale. A currency
// that is legal tender in the locale's region uses its narrow symbol when
// the locale has no dedicated one, so ARS in es-AR is "$" and not "ARS".
func NewAmountFormatter(locale, code string) (*AmountFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", code, err)
	}

	p := message.NewPrinter(tag)
	sym := p.Sprint(currency.Symbol(unit))
	if sym == unit.String() {
		if region, _ := tag.Region(); isLocalCurrency(region, unit) {
			sym = p.Sprint(currency.NarrowSymbol(unit))
		}
	}
	return &AmountFormatter{printer: p, symbol: sym}, nil
}

func isLocalCurrency(region language.Region, unit currency.Unit) bool {
	local, ok := currency.FromRegion(region)
	return ok && local == unit
}

// Format groups digits per locale, e.g. 35000 ARS in es-AR is "$ 35.000"
// with a non-breaking space.
func (f *AmountFormatter) Format(amount int64) string {
	return f.symbol + "\u00a0" + f.printer.Sprintf("%d", amount)
}
