package tool

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatCurrency renders a WHMCS decimal string as Brazilian currency,
// e.g. "1234.5" -> "R$ 1.234,50". Unparseable input is returned as-is.
func FormatCurrency(value string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return value
	}

	negative := f < 0
	if negative {
		f = -f
	}

	cents := int64(f*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, b.String(), frac)
}

// FormatDate renders a WHMCS date (yyyy-mm-dd) as dd/mm/yyyy. Unparseable
// input is returned as-is.
func FormatDate(value string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return t.Format("02/01/2006")
}
