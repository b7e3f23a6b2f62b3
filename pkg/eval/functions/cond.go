package functions

import (
	"strings"

	"github.com/kochj23/webmush/pkg/eval"
)

// Conditionals take raw argument text and evaluate only the branch they
// select, so side-effect functions in the untaken branch never fire.

func fnIf(ctx *eval.Context, args []string, buf *strings.Builder) {
	if isTrue(ctx.EvalNested(args[0])) {
		buf.WriteString(ctx.EvalNested(args[1]))
	} else if len(args) > 2 {
		buf.WriteString(ctx.EvalNested(args[2]))
	}
}

// switch(expr, pat1, res1, ..., default). Patterns support * and ?
// wildcards; #$ in the selected result is replaced by the switch value.
func fnSwitch(ctx *eval.Context, args []string, buf *strings.Builder) {
	val := ctx.EvalNested(args[0])
	i := 1
	for ; i+1 < len(args); i += 2 {
		if wildMatch(strings.TrimSpace(ctx.EvalNested(args[i])), val) {
			buf.WriteString(ctx.EvalNested(strings.ReplaceAll(args[i+1], "#$", val)))
			return
		}
	}
	if i < len(args) {
		buf.WriteString(ctx.EvalNested(strings.ReplaceAll(args[i], "#$", val)))
	}
}

// default(obj/attr, fallback) yields the attribute text when set and
// readable, else the evaluated fallback.
func fnDefault(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref, attr, ok := splitObjAttr(ctx, ctx.EvalNested(args[0]))
	if ok {
		if text, found := ctx.AttrText(ctx.Executor, ref, attr); found && text != "" {
			buf.WriteString(text)
			return
		}
	}
	buf.WriteString(ctx.EvalNested(args[1]))
}

// wildMatch does case-insensitive glob matching with * and ?.
func wildMatch(pat, s string) bool {
	return wildMatchFold(strings.ToLower(pat), strings.ToLower(s))
}

func wildMatchFold(pat, s string) bool {
	for len(pat) > 0 {
		switch pat[0] {
		case '*':
			for len(pat) > 0 && pat[0] == '*' {
				pat = pat[1:]
			}
			if pat == "" {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if wildMatchFold(pat, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if s == "" {
				return false
			}
			pat, s = pat[1:], s[1:]
		default:
			if s == "" || pat[0] != s[0] {
				return false
			}
			pat, s = pat[1:], s[1:]
		}
	}
	return s == ""
}

func registerCondFns(r *eval.Registry) {
	r.Register("if", fnIf, -2, eval.FnVarArgs|eval.FnNoEval)
	r.Alias("ifelse", "if")
	r.Register("switch", fnSwitch, -2, eval.FnVarArgs|eval.FnNoEval)
	r.Alias("case", "switch")
	r.Register("default", fnDefault, 2, eval.FnNoEval)
	r.Register("strmatch", fnStrmatch, 2, 0)
}

// strmatch(str, pattern) wildcard-matches a whole string.
func fnStrmatch(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, wildMatch(args[1], args[0]))
}
