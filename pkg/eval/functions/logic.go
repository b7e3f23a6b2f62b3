package functions

import (
	"strings"

	"github.com/kochj23/webmush/pkg/eval"
)

func fnEq(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, toFloat(args[0]) == toFloat(args[1]))
}

func fnNeq(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, toFloat(args[0]) != toFloat(args[1]))
}

func fnGt(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, toFloat(args[0]) > toFloat(args[1]))
}

func fnGte(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, toFloat(args[0]) >= toFloat(args[1]))
}

func fnLt(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, toFloat(args[0]) < toFloat(args[1]))
}

func fnLte(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, toFloat(args[0]) <= toFloat(args[1]))
}

func fnAnd(_ *eval.Context, args []string, buf *strings.Builder) {
	for _, a := range args {
		if !isTrue(a) {
			buf.WriteString("0")
			return
		}
	}
	writeBool(buf, len(args) > 0)
}

func fnOr(_ *eval.Context, args []string, buf *strings.Builder) {
	for _, a := range args {
		if isTrue(a) {
			buf.WriteString("1")
			return
		}
	}
	buf.WriteString("0")
}

func fnNot(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, !isTrue(args[0]))
}

func fnXor(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, isTrue(args[0]) != isTrue(args[1]))
}

func fnNand(_ *eval.Context, args []string, buf *strings.Builder) {
	for _, a := range args {
		if !isTrue(a) {
			buf.WriteString("1")
			return
		}
	}
	buf.WriteString("0")
}

func fnNor(_ *eval.Context, args []string, buf *strings.Builder) {
	for _, a := range args {
		if isTrue(a) {
			buf.WriteString("0")
			return
		}
	}
	buf.WriteString("1")
}

// t() reduces a string to softcode truth.
func fnT(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, isTrue(args[0]))
}

// cand/cor are the lazy forms: arguments evaluate left to right and stop
// at the first decider.
func fnCand(ctx *eval.Context, args []string, buf *strings.Builder) {
	for _, raw := range args {
		if !isTrue(ctx.EvalNested(raw)) {
			buf.WriteString("0")
			return
		}
	}
	writeBool(buf, len(args) > 0)
}

func fnCor(ctx *eval.Context, args []string, buf *strings.Builder) {
	for _, raw := range args {
		if isTrue(ctx.EvalNested(raw)) {
			buf.WriteString("1")
			return
		}
	}
	buf.WriteString("0")
}

func registerLogicFns(r *eval.Registry) {
	r.Register("eq", fnEq, 2, 0)
	r.Register("neq", fnNeq, 2, 0)
	r.Register("gt", fnGt, 2, 0)
	r.Register("gte", fnGte, 2, 0)
	r.Register("lt", fnLt, 2, 0)
	r.Register("lte", fnLte, 2, 0)
	r.Register("and", fnAnd, -1, eval.FnVarArgs)
	r.Register("or", fnOr, -1, eval.FnVarArgs)
	r.Register("not", fnNot, 1, 0)
	r.Register("xor", fnXor, 2, 0)
	r.Register("nand", fnNand, -1, eval.FnVarArgs)
	r.Register("nor", fnNor, -1, eval.FnVarArgs)
	r.Register("t", fnT, 1, 0)
	r.Register("cand", fnCand, -1, eval.FnVarArgs|eval.FnNoEval)
	r.Register("cor", fnCor, -1, eval.FnVarArgs|eval.FnNoEval)
}
