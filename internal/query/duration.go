package query

import (
	"math"
	"regexp"
	"sort"
	"strconv"
)

var (
	minuteRange = regexp.MustCompile(`(\d+)\s*(?:-|–|to)\s*(\d+)\s*(?:minutes?|mins?)\b`)
	hourRange   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)
	minutes     = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?)\b`)
	hours       = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)
	halfHour    = regexp.MustCompile(`\bhalf an? hour\b`)
	oneHour     = regexp.MustCompile(`\b(?:an|one) hour\b`)
)

// ExtractDurations returns the distinct durations in minutes mentioned in
// normalized query text, ascending. Ranges contribute both ends.
func ExtractDurations(normalized string) []int {
	seen := make(map[int]struct{})
	add := func(m int) {
		if m > 0 {
			seen[m] = struct{}{}
		}
	}
	text := normalized

	text = consume(minuteRange, text, func(g []string) {
		add(atoi(g[1]))
		add(atoi(g[2]))
	})
	text = consume(hourRange, text, func(g []string) {
		add(hoursToMinutes(g[1]))
		add(hoursToMinutes(g[2]))
	})
	text = consume(minutes, text, func(g []string) { add(atoi(g[1])) })
	text = consume(hours, text, func(g []string) { add(hoursToMinutes(g[1])) })
	text = consume(halfHour, text, func([]string) { add(30) })
	consume(oneHour, text, func([]string) { add(60) })

	out := make([]int, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

// consume calls fn for every match of re and blanks the matched spans so
// later, less specific patterns do not match them again.
func consume(re *regexp.Regexp, text string, fn func([]string)) string {
	return re.ReplaceAllStringFunc(text, func(m string) string {
		fn(re.FindStringSubmatch(m))
		return " "
	})
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func hoursToMinutes(s string) int {
	h, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(h * 60))
}
