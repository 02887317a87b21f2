package core

import (
	"strconv"
	"strings"
)

// ResolvePages turns a page-selection expression into the number of
// pages it covers. The grammar is "all" or a comma-separated list of
// single 1-based pages and inclusive "a-b" ranges. Malformed or
// out-of-range tokens are skipped; an expression with no parsable
// token at all resolves to every page. The lenient fallback is
// deliberate: a typo prints the whole document rather than nothing.
func ResolvePages(expr string, totalPages int) int {
	s := strings.TrimSpace(expr)
	if s == "" || s == "all" {
		return totalPages
	}

	count := 0
	parsedAny := false
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			start, err1 := strconv.Atoi(strings.TrimSpace(bounds[0]))
			end, err2 := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err1 != nil || err2 != nil {
				continue
			}
			parsedAny = true
			if start >= 1 && start <= end && end <= totalPages {
				count += end - start + 1
			}
		} else {
			page, err := strconv.Atoi(part)
			if err != nil {
				continue
			}
			parsedAny = true
			if page >= 1 && page <= totalPages {
				count++
			}
		}
	}

	if !parsedAny {
		return totalPages
	}
	if count < 1 {
		return 1
	}
	return count
}
