// Package presenter formats query results for terminal display.
package presenter

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// compactUnits are the suffixes used in game statistics, in steps of 1000.
var compactUnits = []string{"", "K", "M", "B", "T", "Q"}

var thousand = decimal.NewFromInt(1000)

// Compact renders a decimal counter the way players read it: 1234567890
// becomes "1.2B". Values below 1000 are returned unchanged and strings that
// are not numbers are passed through.
func Compact(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return s
	}

	abs := d.Abs()
	unit := 0
	for abs.GreaterThanOrEqual(thousand) && unit < len(compactUnits)-1 {
		abs = abs.Div(thousand)
		unit++
	}
	if unit == 0 {
		return d.String()
	}

	// Truncated, so 999999 renders as 999.9K.
	f, _ := abs.Truncate(1).Float64()
	out := humanize.FtoaWithDigits(f, 1) + compactUnits[unit]
	if d.IsNegative() {
		out = "-" + out
	}
	return out
}

// Comma renders a decimal counter with thousands separators at full precision.
func Comma(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	if !d.Equal(d.Truncate(0)) {
		return humanize.CommafWithDigits(d.InexactFloat64(), 2)
	}
	return humanize.BigComma(d.BigInt())
}

// Signed renders a delta with an explicit sign, using compact when asked.
func Signed(s string, compact bool) string {
	out := Comma(s)
	if compact {
		out = Compact(s)
	}
	if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil && d.IsPositive() {
		out = "+" + out
	}
	return out
}

// Percent renders a percentage string such as "-6.25" as "-6.25%".
func Percent(s string) string {
	if s == "" {
		return ""
	}
	if d, err := decimal.NewFromString(s); err == nil && d.IsPositive() {
		return "+" + s + "%"
	}
	return s + "%"
}
