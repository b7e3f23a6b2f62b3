package functions

import (
	"strings"

	"github.com/kochj23/webmush/pkg/eval"
)

func fnStrlen(_ *eval.Context, args []string, buf *strings.Builder) {
	writeInt(buf, len(args[0]))
}

func fnStrcat(_ *eval.Context, args []string, buf *strings.Builder) {
	for _, a := range args {
		buf.WriteString(a)
	}
}

// cat() joins with single spaces; strcat() joins with nothing.
func fnCat(_ *eval.Context, args []string, buf *strings.Builder) {
	buf.WriteString(strings.Join(args, " "))
}

func fnMid(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	start := toInt(args[1])
	length := toInt(args[2])
	if start < 0 || length < 0 || start >= len(s) {
		return
	}
	end := start + length
	if end > len(s) {
		end = len(s)
	}
	buf.WriteString(s[start:end])
}

func fnLeft(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	n := toInt(args[1])
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	buf.WriteString(s[:n])
}

func fnRight(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	n := toInt(args[1])
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	buf.WriteString(s[len(s)-n:])
}

func fnUcstr(_ *eval.Context, args []string, buf *strings.Builder) {
	buf.WriteString(strings.ToUpper(args[0]))
}

func fnLcstr(_ *eval.Context, args []string, buf *strings.Builder) {
	buf.WriteString(strings.ToLower(args[0]))
}

func fnCapstr(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	if s == "" {
		return
	}
	buf.WriteString(strings.ToUpper(s[:1]))
	buf.WriteString(s[1:])
}

// trim(str[, chars]) strips leading and trailing spaces or chars.
func fnTrim(_ *eval.Context, args []string, buf *strings.Builder) {
	cutset := " "
	if len(args) > 1 && args[1] != "" {
		cutset = args[1]
	}
	buf.WriteString(strings.Trim(args[0], cutset))
}

func fnFlip(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	for i := len(s) - 1; i >= 0; i-- {
		buf.WriteByte(s[i])
	}
}

func fnRepeat(_ *eval.Context, args []string, buf *strings.Builder) {
	n := toInt(args[1])
	if n <= 0 || len(args[0])*n > 8000 {
		return
	}
	buf.WriteString(strings.Repeat(args[0], n))
}

func fnSpace(_ *eval.Context, args []string, buf *strings.Builder) {
	n := toInt(args[0])
	if n <= 0 || n > 8000 {
		return
	}
	buf.WriteString(strings.Repeat(" ", n))
}

func fnLjust(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	width := toInt(args[1])
	fill := " "
	if len(args) > 2 && args[2] != "" {
		fill = args[2][:1]
	}
	buf.WriteString(s)
	for i := len(s); i < width; i++ {
		buf.WriteString(fill)
	}
}

func fnRjust(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	width := toInt(args[1])
	fill := " "
	if len(args) > 2 && args[2] != "" {
		fill = args[2][:1]
	}
	for i := len(s); i < width; i++ {
		buf.WriteString(fill)
	}
	buf.WriteString(s)
}

func fnCenter(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	width := toInt(args[1])
	fill := " "
	if len(args) > 2 && args[2] != "" {
		fill = args[2][:1]
	}
	if len(s) >= width {
		buf.WriteString(s)
		return
	}
	lead := (width - len(s)) / 2
	buf.WriteString(strings.Repeat(fill, lead))
	buf.WriteString(s)
	buf.WriteString(strings.Repeat(fill, width-len(s)-lead))
}

// pos(needle, haystack) is 0-based; #-1 when absent.
func fnPos(_ *eval.Context, args []string, buf *strings.Builder) {
	idx := strings.Index(args[1], args[0])
	if idx < 0 {
		buf.WriteString("#-1")
		return
	}
	writeInt(buf, idx)
}

func fnBefore(_ *eval.Context, args []string, buf *strings.Builder) {
	if idx := strings.Index(args[0], args[1]); idx >= 0 {
		buf.WriteString(args[0][:idx])
		return
	}
	buf.WriteString(args[0])
}

func fnAfter(_ *eval.Context, args []string, buf *strings.Builder) {
	if idx := strings.Index(args[0], args[1]); idx >= 0 {
		buf.WriteString(args[0][idx+len(args[1]):])
	}
}

// edit(str, from, to) replaces every occurrence; $ appends, ^ prepends.
func fnEdit(_ *eval.Context, args []string, buf *strings.Builder) {
	s, from, to := args[0], args[1], args[2]
	switch from {
	case "$":
		buf.WriteString(s)
		buf.WriteString(to)
	case "^":
		buf.WriteString(to)
		buf.WriteString(s)
	case "":
		buf.WriteString(s)
	default:
		buf.WriteString(strings.ReplaceAll(s, from, to))
	}
}

// escape() neuters the evaluation specials so stored text round-trips.
func fnEscape(_ *eval.Context, args []string, buf *strings.Builder) {
	s := args[0]
	if s == "" {
		return
	}
	buf.WriteByte('\\')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '\\', '[', ']', '{', '}', ';':
			buf.WriteByte('\\')
		}
		buf.WriteByte(s[i])
	}
}

// secure() replaces evaluation specials with spaces.
func fnSecure(_ *eval.Context, args []string, buf *strings.Builder) {
	for i := 0; i < len(args[0]); i++ {
		switch args[0][i] {
		case '%', '\\', '[', ']', '{', '}', ';', '(', ')', ',', '$':
			buf.WriteByte(' ')
		default:
			buf.WriteByte(args[0][i])
		}
	}
}

// squish() collapses runs of spaces to one.
func fnSquish(_ *eval.Context, args []string, buf *strings.Builder) {
	buf.WriteString(strings.Join(strings.Fields(args[0]), " "))
}

// comp() is a three-way string compare.
func fnComp(_ *eval.Context, args []string, buf *strings.Builder) {
	writeInt(buf, strings.Compare(args[0], args[1]))
}

func registerStringFns(r *eval.Registry) {
	r.Register("strlen", fnStrlen, 1, 0)
	r.Register("strcat", fnStrcat, 0, eval.FnVarArgs)
	r.Register("cat", fnCat, 0, eval.FnVarArgs)
	r.Register("mid", fnMid, 3, 0)
	r.Alias("substr", "mid")
	r.Register("left", fnLeft, 2, 0)
	r.Register("right", fnRight, 2, 0)
	r.Register("ucstr", fnUcstr, 1, 0)
	r.Register("lcstr", fnLcstr, 1, 0)
	r.Register("capstr", fnCapstr, 1, 0)
	r.Register("trim", fnTrim, -1, 0)
	r.Register("flip", fnFlip, 1, 0)
	r.Alias("reverse", "flip")
	r.Register("repeat", fnRepeat, 2, 0)
	r.Register("space", fnSpace, 1, 0)
	r.Register("ljust", fnLjust, -2, 0)
	r.Register("rjust", fnRjust, -2, 0)
	r.Register("center", fnCenter, -2, 0)
	r.Register("pos", fnPos, 2, 0)
	r.Register("before", fnBefore, 2, 0)
	r.Register("after", fnAfter, 2, 0)
	r.Register("edit", fnEdit, 3, 0)
	r.Register("escape", fnEscape, 1, 0)
	r.Register("secure", fnSecure, 1, 0)
	r.Register("squish", fnSquish, 1, 0)
	r.Register("comp", fnComp, 2, 0)
}
