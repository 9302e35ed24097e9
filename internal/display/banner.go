package display

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// PrintBanner writes the banner to w in bright magenta when colors are enabled.
func PrintBanner(w io.Writer) {
	c := color.New(color.FgHiMagenta, color.Bold)
	fmt.Fprintln(w, c.Sprint(`┌─┐┬  ┬┌─┐┌┐ ┌─┐┌┬┐┌─┐┬ ┬
└─┐└┐┌┘│ ┬├┴┐├─┤ │ │  ├─┤
└─┘ └┘ └─┘└─┘┴ ┴ ┴ └─┘┴ ┴`))
}
