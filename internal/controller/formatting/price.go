package formatting

import (
	"fmt"
	"strings"
)

// FormatPrice форматирует сумму из центов
func FormatPrice(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
	if currency == "" {
		return amount
	}
	return amount + " " + strings.ToUpper(currency)
}
