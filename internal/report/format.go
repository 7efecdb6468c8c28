package report

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"carteira/internal/core"
)

// FormatBRL renders m as Brazilian reais, e.g. "R$ 1.234,56" or "-R$ 10,00".
func FormatBRL(m core.Money) string {
	p := message.NewPrinter(language.BrazilianPortuguese)
	s := p.Sprint(number.Decimal(m.Abs().Float(), number.Scale(2)))
	if m.Cents < 0 {
		return "-R$ " + s
	}
	return "R$ " + s
}
