package helpers

import "fmt"

// FormatUSD formats a number as whole US dollars with thousand separators
func FormatUSD(amount float64) string {
	// Convert to integer for formatting
	value := int64(amount)

	// Handle negative numbers
	negative := value < 0
	if negative {
		value = -value
	}

	str := fmt.Sprintf("%d", value)
	length := len(str)

	// Build the formatted string with commas as thousand separators
	var result string
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}

	if negative {
		return fmt.Sprintf("-$%s", result)
	}
	return fmt.Sprintf("$%s", result)
}

// FormatPremium formats an option premium compactly: $1.25M, $350K or $900
func FormatPremium(amount float64) string {
	abs := amount
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}

	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%s$%.2fM", sign, abs/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%s$%.0fK", sign, abs/1_000)
	default:
		return fmt.Sprintf("%s$%.0f", sign, abs)
	}
}
