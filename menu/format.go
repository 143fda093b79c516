package menu

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	platePattern        = regexp.MustCompile(`^[A-Z0-9]{3,12}$`)
	phonePattern        = regexp.MustCompile(`^\+?[0-9]{9,15}$`)
	menuSelectorPattern = regexp.MustCompile(`^[0-9]$`)
)

// normalizePlate uppercases a plate and drops any whitespace inside it.
func normalizePlate(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

func validPlate(plate string) bool {
	return platePattern.MatchString(plate)
}

func normalizePhone(s string) string {
	return strings.TrimPrefix(strings.Join(strings.Fields(s), ""), "+")
}

func normalizeUSSD(s string) string {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimRight(s, "#")
	return strings.TrimLeft(s, "*")
}

// humanDuration renders minutes as e.g. "2 hours 5 minutes".
func humanDuration(minutes int) string {
	hours, mins := minutes/60, minutes%60
	switch {
	case hours == 0:
		return plural(mins, "minute")
	case mins == 0:
		return plural(hours, "hour")
	default:
		return plural(hours, "hour") + " " + plural(mins, "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
