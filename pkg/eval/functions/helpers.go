package functions

import (
	"errors"
	"strconv"
	"strings"
)

// toFloat parses leading numeric text, ignoring trailing garbage, the way
// softcode authors expect: "42 gold" reads as 42.
func toFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	sawDot := false
	for end < len(s) {
		if s[end] == '.' && !sawDot {
			sawDot = true
			end++
		} else if s[end] >= '0' && s[end] <= '9' {
			end++
		} else {
			break
		}
	}
	f, _ := strconv.ParseFloat(s[:end], 64)
	return f
}

// toInt parses leading digits, ignoring trailing non-digits. Values
// beyond the int range saturate at the range boundary.
func toInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, strconv.IntSize)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	// ParseInt clamps to the range boundary on a range error.
	return int(n)
}

// isNumeric reports whether the whole trimmed string parses as a number.
func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// isTrue applies softcode truth: empty, "0", and error sentinels are
// false; everything else is true.
func isTrue(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#-") {
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return true
}

func boolToStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func writeInt(buf *strings.Builder, i int) {
	buf.WriteString(strconv.Itoa(i))
}

func writeBool(buf *strings.Builder, b bool) {
	buf.WriteString(boolToStr(b))
}

func writeFloat(buf *strings.Builder, f float64) {
	if f == float64(int64(f)) {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
	} else {
		buf.WriteString(strconv.FormatFloat(f, 'f', 6, 64))
	}
}

// listSep returns the word separator for list functions: args[idx] if
// present and non-empty, else a single space.
func listSep(args []string, idx int) string {
	if idx < len(args) && args[idx] != "" {
		return args[idx]
	}
	return " "
}

// splitList splits a softcode list on its separator. A space separator
// collapses runs of spaces, matching how word lists behave.
func splitList(list, sep string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	if sep == " " {
		return strings.Fields(list)
	}
	return strings.Split(list, sep)
}
