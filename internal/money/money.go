// Package money содержит чистые помощники для сумм и количеств.
// Суммы хранятся в int64 в минимальных единицах единственной валюты магазина.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percent возвращает pct процентов от amount с округлением до целой единицы
// (половина округляется от нуля).
func Percent(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Round(0).IntPart()
}

// PercentInt считает Percent для целого процента.
func PercentInt(amount, pct int64) int64 {
	return Percent(amount, decimal.NewFromInt(pct))
}

// NonNegative обрезает отрицательные значения до нуля.
func NonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// Sum складывает суммы.
func Sum(values ...int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}

// ValidQuantity проверяет, что количество положительно.
func ValidQuantity(q int) bool {
	return q > 0
}

// Format форматирует сумму для витрины: "$ 12.345", "-$ 200".
func Format(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + "$ " + groupThousands(decimal.NewFromInt(amount).String())
}

// FormatWithCents форматирует сумму, заданную в сотых: 123456 → "$ 1.234,56".
func FormatWithCents(cents int64) string {
	d := decimal.New(cents, -2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + "$ " + groupThousands(intPart) + "," + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
