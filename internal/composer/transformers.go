package composer

import (
	"fmt"
	"regexp"
	"strings"
)

// Transformer post-processes an extracted value. A nil result means the
// transformer found nothing, which makes the field absent for the item.
type Transformer func(value any) any

// Find returns a transformer yielding the given capture group of the first
// maxMatches matches of pattern (0 means all matches). With maxMatches set
// to 1 the result is a string, otherwise a []string. Flags go in the
// pattern itself, e.g. `(?im)`.
func Find(pattern string, group int, maxMatches int) (Transformer, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("find transformer: %w", err)
	}

	if group < 0 || group > re.NumSubexp() {
		return nil, fmt.Errorf("find transformer: pattern %q has no group %d", pattern, group)
	}

	limit := maxMatches
	if limit == 0 {
		limit = -1
	}

	return func(value any) any {
		var results []string

		for _, s := range stringsOf(value) {
			for _, m := range re.FindAllStringSubmatch(s, limit) {
				results = append(results, m[group])
			}
		}

		if maxMatches > 0 && len(results) > maxMatches {
			results = results[:maxMatches]
		}

		switch {
		case len(results) == 0:
			return nil
		case maxMatches == 1:
			return results[0]
		default:
			return results
		}
	}, nil
}

// Split returns a transformer splitting a string, or each string of a
// slice, on sep. Parts are trimmed and empty parts dropped. An empty sep
// splits on runs of whitespace.
func Split(sep string) Transformer {
	return func(value any) any {
		var parts []string

		for _, s := range stringsOf(value) {
			var pieces []string
			if sep == "" {
				pieces = strings.Fields(s)
			} else {
				pieces = strings.Split(s, sep)
			}

			for _, p := range pieces {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
		}

		if len(parts) == 0 {
			return nil
		}

		return parts
	}
}

// Replace returns a transformer replacing matches of pattern in a string
// value. Non-string values pass through.
func Replace(pattern string, repl string) (Transformer, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("replace transformer: %w", err)
	}

	return func(value any) any {
		s, ok := value.(string)
		if !ok {
			return value
		}

		return re.ReplaceAllString(s, repl)
	}, nil
}

// Lowercase lowercases string values, e.g. for sort keys.
func Lowercase(value any) any {
	switch t := value.(type) {
	case string:
		return strings.ToLower(t)

	case []string:
		res := make([]string, len(t))
		for i, s := range t {
			res[i] = strings.ToLower(s)
		}
		return res

	default:
		return value
	}
}

// Present turns a value into true when it holds a non-blank string and
// false otherwise.
func Present(value any) any {
	for _, s := range stringsOf(value) {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}

	return false
}

var extraMarkerLine = regexp.MustCompile(`(?i)^\s*(EdTechHub|KerkoCite)\.`)

// ExtraFieldCleaner removes the EdTechHub.* and KerkoCite.* lines from the
// extra field of a raw data record. The record is copied so other
// extractors still see the original.
func ExtraFieldCleaner(value any) any {
	data, ok := value.(map[string]any)
	if !ok {
		return value
	}

	extra, ok := data["extra"].(string)
	if !ok {
		return value
	}

	clean := make(map[string]any, len(data))
	for k, v := range data {
		clean[k] = v
	}

	clean["extra"] = CleanExtra(extra)

	return clean
}

// CleanExtra is the text form of ExtraFieldCleaner.
func CleanExtra(extra string) string {
	var kept []string

	for _, line := range strings.Split(extra, "\n") {
		if !extraMarkerLine.MatchString(line) {
			kept = append(kept, line)
		}
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}
