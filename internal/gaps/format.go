package gaps

import (
	"fmt"
	"strconv"
)

// FormatVolume renders a share count as "1.23 B", "4.56 M", "7.89 K" or a
// plain integer below one thousand.
func FormatVolume(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2f B", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2f M", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2f K", v/1e3)
	default:
		return strconv.FormatInt(int64(v), 10)
	}
}

// FormatDollars renders a dollar amount with the same magnitude suffixes.
func FormatDollars(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.2f B", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2f M", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.2f K", v/1e3)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}
