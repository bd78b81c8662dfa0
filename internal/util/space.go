package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// PadRight pads a string with spaces to a fixed display width, truncating
// with "..." when it is too wide. Widths are terminal cell widths, so wide
// characters count double.
func PadRight(str string, width int) string {
	w := runewidth.StringWidth(str)
	if w > width {
		return runewidth.Truncate(str, width, "...")
	}
	return str + strings.Repeat(" ", width-w)
}
