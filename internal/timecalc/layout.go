package timecalc

import (
	"fmt"
	"strings"
)

var strftimeVerbs = map[byte]string{
	'd': "02",
	'e': "_2",
	'm': "01",
	'Y': "2006",
	'y': "06",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'H': "15",
	'M': "04",
	'S': "05",
	'%': "%",
}

// Layout translates a strftime-style pattern such as "%d.%m.%Y" into a Go
// time layout.
func Layout(format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("empty date format")
	}
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("date format %q: dangling %%", format)
		}
		i++
		verb, ok := strftimeVerbs[format[i]]
		if !ok {
			return "", fmt.Errorf("date format %q: unsupported verb %%%c", format, format[i])
		}
		b.WriteString(verb)
	}
	return b.String(), nil
}

// alternateLayout swaps the separator convention of a layout: dots and
// slashes become dashes, dashes become dots.
func alternateLayout(layout string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '/':
			return '-'
		case '-':
			return '.'
		}
		return r
	}, layout)
}
