// Package report renders search results as aligned text tables and plots.
package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// table is a plain grid of cells. The row at index best (if any) is
// marked with "*" and, when highlight is set, printed in bold green even
// if stdout is not a terminal. Callers decide via ColorEnabled.
type table struct {
	header []string
	rows   [][]string
	best   int
}

func (t *table) render(w io.Writer, highlight bool) error {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range t.rows {
		for i, cell := range r {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	hl := color.New(color.FgGreen, color.Bold)
	head := color.New(color.Bold)
	if highlight {
		hl.EnableColor()
		head.EnableColor()
	} else {
		hl.DisableColor()
		head.DisableColor()
	}

	if _, err := fmt.Fprintln(w, head.Sprint(line("  ", t.header, widths))); err != nil {
		return err
	}
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	if _, err := fmt.Fprintln(w, line("  ", rule, widths)); err != nil {
		return err
	}
	for i, r := range t.rows {
		mark := "  "
		s := line("", r, widths)
		if i == t.best {
			mark = "* "
			s = hl.Sprint(s)
		}
		if _, err := fmt.Fprintln(w, mark+s); err != nil {
			return err
		}
	}
	return nil
}

// line pads every cell to its column width. The leading indent lines the
// header up with the row marker.
func line(indent string, cells []string, widths []int) string {
	var b strings.Builder
	b.WriteString(indent)
	for i, c := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(c)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c)))
		}
	}
	return b.String()
}

// ColorEnabled resolves an "auto", "always" or "never" colour setting.
// auto follows fatih/color's terminal detection.
func ColorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	return !color.NoColor
}
