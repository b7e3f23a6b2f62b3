package functions

import (
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/kochj23/webmush/pkg/eval"
)

func fnWords(_ *eval.Context, args []string, buf *strings.Builder) {
	writeInt(buf, len(splitList(args[0], listSep(args, 1))))
}

func fnFirst(_ *eval.Context, args []string, buf *strings.Builder) {
	items := splitList(args[0], listSep(args, 1))
	if len(items) > 0 {
		buf.WriteString(items[0])
	}
}

func fnRest(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 1)
	items := splitList(args[0], sep)
	if len(items) > 1 {
		buf.WriteString(strings.Join(items[1:], sep))
	}
}

func fnLast(_ *eval.Context, args []string, buf *strings.Builder) {
	items := splitList(args[0], listSep(args, 1))
	if len(items) > 0 {
		buf.WriteString(items[len(items)-1])
	}
}

// extract(list, start, count[, sep]) is 1-based.
func fnExtract(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 3)
	items := splitList(args[0], sep)
	start := toInt(args[1]) - 1
	count := toInt(args[2])
	if start < 0 || count <= 0 || start >= len(items) {
		return
	}
	end := start + count
	if end > len(items) {
		end = len(items)
	}
	buf.WriteString(strings.Join(items[start:end], sep))
}

// index(list, sep, start, count) is extract() with the separator second.
func fnIndex(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := args[1]
	if sep == "" {
		sep = " "
	}
	items := splitList(args[0], sep)
	start := toInt(args[2]) - 1
	count := toInt(args[3])
	if start < 0 || count <= 0 || start >= len(items) {
		return
	}
	end := start + count
	if end > len(items) {
		end = len(items)
	}
	buf.WriteString(strings.Join(items[start:end], sep))
}

// member(list, word[, sep]) is the 1-based position of an exact match.
func fnMember(_ *eval.Context, args []string, buf *strings.Builder) {
	for i, item := range splitList(args[0], listSep(args, 2)) {
		if item == args[1] {
			writeInt(buf, i+1)
			return
		}
	}
	buf.WriteString("0")
}

// match(list, pattern[, sep]) is member() with wildcards.
func fnMatch(_ *eval.Context, args []string, buf *strings.Builder) {
	for i, item := range splitList(args[0], listSep(args, 2)) {
		if wildMatch(args[1], item) {
			writeInt(buf, i+1)
			return
		}
	}
	buf.WriteString("0")
}

// grab(list, pattern[, sep]) returns the first matching element itself.
func fnGrab(_ *eval.Context, args []string, buf *strings.Builder) {
	for _, item := range splitList(args[0], listSep(args, 2)) {
		if wildMatch(args[1], item) {
			buf.WriteString(item)
			return
		}
	}
}

func fnGraball(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 2)
	var out []string
	for _, item := range splitList(args[0], sep) {
		if wildMatch(args[1], item) {
			out = append(out, item)
		}
	}
	buf.WriteString(strings.Join(out, sep))
}

func fnRevwords(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 1)
	items := splitList(args[0], sep)
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	buf.WriteString(strings.Join(items, sep))
}

func fnUnique(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 1)
	seen := make(map[string]bool)
	var out []string
	for _, item := range splitList(args[0], sep) {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	buf.WriteString(strings.Join(out, sep))
}

// sort(list[, type[, sep]]). Type "n" sorts numerically, "d" dbrefs,
// anything else lexicographically.
func fnSort(_ *eval.Context, args []string, buf *strings.Builder) {
	sortType := ""
	if len(args) > 1 {
		sortType = strings.ToLower(strings.TrimSpace(args[1]))
	}
	sep := listSep(args, 2)
	items := splitList(args[0], sep)
	switch sortType {
	case "n", "f", "d":
		sort.SliceStable(items, func(i, j int) bool {
			return toFloat(strings.TrimPrefix(items[i], "#")) < toFloat(strings.TrimPrefix(items[j], "#"))
		})
	default:
		sort.Strings(items)
	}
	buf.WriteString(strings.Join(items, sep))
}

// ldelete(list, pos[, sep]) removes the 1-based element.
func fnLdelete(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 2)
	items := splitList(args[0], sep)
	pos := toInt(args[1]) - 1
	if pos >= 0 && pos < len(items) {
		items = append(items[:pos], items[pos+1:]...)
	}
	buf.WriteString(strings.Join(items, sep))
}

// linsert(list, pos, word[, sep]) inserts before the 1-based position.
func fnLinsert(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 3)
	items := splitList(args[0], sep)
	pos := toInt(args[1]) - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(items) {
		pos = len(items)
	}
	items = append(items[:pos], append([]string{args[2]}, items[pos:]...)...)
	buf.WriteString(strings.Join(items, sep))
}

func fnReplace(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 3)
	items := splitList(args[0], sep)
	pos := toInt(args[1]) - 1
	if pos >= 0 && pos < len(items) {
		items[pos] = args[2]
	}
	buf.WriteString(strings.Join(items, sep))
}

// lnum(n) is 0..n-1; lnum(lo, hi) is lo..hi inclusive.
func fnLnum(_ *eval.Context, args []string, buf *strings.Builder) {
	lo, hi := 0, 0
	if len(args) == 1 {
		hi = toInt(args[0]) - 1
	} else {
		lo, hi = toInt(args[0]), toInt(args[1])
	}
	if hi-lo >= 1000 {
		buf.WriteString("#-1 RANGE TOO LARGE")
		return
	}
	for i := lo; i <= hi; i++ {
		if i > lo {
			buf.WriteByte(' ')
		}
		writeInt(buf, i)
	}
}

// iter(list, pattern[, sep[, osep]]) evaluates pattern per element with
// ## replaced by the element and #@ by its 1-based position.
func fnIter(ctx *eval.Context, args []string, buf *strings.Builder) {
	list := ctx.EvalNested(args[0])
	sep := " "
	if len(args) > 2 {
		if s := ctx.EvalNested(args[2]); s != "" {
			sep = s
		}
	}
	osep := sep
	if len(args) > 3 {
		osep = ctx.EvalNested(args[3])
	}
	for i, item := range splitList(list, sep) {
		if i > 0 {
			buf.WriteString(osep)
		}
		pat := strings.ReplaceAll(args[1], "##", item)
		pat = strings.ReplaceAll(pat, "#@", itoa(i+1))
		buf.WriteString(ctx.EvalNested(pat))
	}
}

// map(obj/attr, list[, sep]) runs the attribute as a one-argument
// function over each element.
func fnMap(ctx *eval.Context, args []string, buf *strings.Builder) {
	text, ok := resolveUFun(ctx, args[0])
	if !ok {
		buf.WriteString("#-1 NO SUCH ATTRIBUTE")
		return
	}
	sep := listSep(args, 2)
	for i, item := range splitList(args[1], sep) {
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(callUFun(ctx, text, []string{item}))
	}
}

// filter(obj/attr, list[, sep]) keeps elements for which the attribute
// evaluates true.
func fnFilter(ctx *eval.Context, args []string, buf *strings.Builder) {
	text, ok := resolveUFun(ctx, args[0])
	if !ok {
		buf.WriteString("#-1 NO SUCH ATTRIBUTE")
		return
	}
	sep := listSep(args, 2)
	var out []string
	for _, item := range splitList(args[1], sep) {
		if isTrue(callUFun(ctx, text, []string{item})) {
			out = append(out, item)
		}
	}
	buf.WriteString(strings.Join(out, sep))
}

// fold(obj/attr, list[, base[, sep]]) reduces left to right; the
// attribute sees %0 accumulator and %1 element.
func fnFold(ctx *eval.Context, args []string, buf *strings.Builder) {
	text, ok := resolveUFun(ctx, args[0])
	if !ok {
		buf.WriteString("#-1 NO SUCH ATTRIBUTE")
		return
	}
	sep := " "
	if len(args) > 3 && args[3] != "" {
		sep = args[3]
	}
	items := splitList(args[1], sep)
	var acc string
	if len(args) > 2 && args[2] != "" {
		acc = args[2]
	} else if len(items) > 0 {
		acc, items = items[0], items[1:]
	}
	for _, item := range items {
		acc = callUFun(ctx, text, []string{acc, item})
	}
	buf.WriteString(acc)
}

func fnSetunion(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 2)
	seen := make(map[string]bool)
	var out []string
	for _, item := range append(splitList(args[0], sep), splitList(args[1], sep)...) {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	buf.WriteString(strings.Join(out, sep))
}

func fnSetinter(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 2)
	right := make(map[string]bool)
	for _, item := range splitList(args[1], sep) {
		right[item] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, item := range splitList(args[0], sep) {
		if right[item] && !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	buf.WriteString(strings.Join(out, sep))
}

func fnSetdiff(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 2)
	right := make(map[string]bool)
	for _, item := range splitList(args[1], sep) {
		right[item] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, item := range splitList(args[0], sep) {
		if !right[item] && !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	buf.WriteString(strings.Join(out, sep))
}

// items(list, sep) counts elements with an arbitrary separator without
// collapsing empties.
func fnItems(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := args[1]
	if sep == "" {
		sep = " "
	}
	if args[0] == "" {
		buf.WriteString("0")
		return
	}
	writeInt(buf, strings.Count(args[0], sep)+1)
}

func fnShuffle(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := listSep(args, 1)
	items := splitList(args[0], sep)
	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	buf.WriteString(strings.Join(items, sep))
}

// element(list, pattern[, sep]) is match() under its older name.
func fnElements(_ *eval.Context, args []string, buf *strings.Builder) {
	sep := " "
	if len(args) > 2 && args[2] != "" {
		sep = args[2]
	}
	items := splitList(args[0], sep)
	var out []string
	for _, idx := range strings.Fields(args[1]) {
		i := toInt(idx) - 1
		if i >= 0 && i < len(items) {
			out = append(out, items[i])
		}
	}
	buf.WriteString(strings.Join(out, sep))
}

func itoa(i int) string {
	var b strings.Builder
	writeInt(&b, i)
	return b.String()
}

func registerListFns(r *eval.Registry) {
	r.Register("words", fnWords, -1, 0)
	r.Register("first", fnFirst, -1, 0)
	r.Register("rest", fnRest, -1, 0)
	r.Register("last", fnLast, -1, 0)
	r.Register("extract", fnExtract, -3, 0)
	r.Register("index", fnIndex, 4, 0)
	r.Register("member", fnMember, -2, 0)
	r.Register("match", fnMatch, -2, 0)
	r.Register("grab", fnGrab, -2, 0)
	r.Register("graball", fnGraball, -2, 0)
	r.Register("revwords", fnRevwords, -1, 0)
	r.Register("unique", fnUnique, -1, 0)
	r.Register("sort", fnSort, -1, 0)
	r.Register("ldelete", fnLdelete, -2, 0)
	r.Register("linsert", fnLinsert, -3, 0)
	r.Register("replace", fnReplace, -3, 0)
	r.Register("lnum", fnLnum, -1, eval.FnVarArgs)
	r.Register("iter", fnIter, -2, eval.FnVarArgs|eval.FnNoEval)
	r.Alias("list", "iter")
	r.Register("map", fnMap, -2, 0)
	r.Register("filter", fnFilter, -2, 0)
	r.Register("fold", fnFold, -2, 0)
	r.Register("setunion", fnSetunion, -2, 0)
	r.Register("setinter", fnSetinter, -2, 0)
	r.Register("setdiff", fnSetdiff, -2, 0)
	r.Register("items", fnItems, 2, 0)
	r.Register("shuffle", fnShuffle, -1, 0)
	r.Register("elements", fnElements, -2, 0)
}
