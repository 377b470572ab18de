package timecalc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/ticket-timer/internal/model"
)

// Resolve turns the positional CLI argument into the report day.
//
// An empty argument means today, a non-negative integer is an offset in days
// back from today, anything else is parsed with the strftime-style format and,
// failing that, with the alternate separator convention. The result is
// midnight in now's location.
func Resolve(arg, format string, now time.Time) (time.Time, error) {
	today := StartOfDay(now)
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return today, nil
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 0 {
		return today.AddDate(0, 0, -n), nil
	}

	layout, err := Layout(format)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", model.ErrInvalidDateArgument, err)
	}
	for _, l := range []string{layout, alternateLayout(layout)} {
		if t, err := time.ParseInLocation(l, arg, now.Location()); err == nil {
			return StartOfDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q does not match %s", model.ErrInvalidDateArgument, arg, format)
}
