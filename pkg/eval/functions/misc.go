package functions

import (
	"strings"

	"github.com/kochj23/webmush/pkg/eval"
	"github.com/kochj23/webmush/pkg/gamedb"
)

func fnIsdbref(ctx *eval.Context, args []string, buf *strings.Builder) {
	s := strings.TrimSpace(args[0])
	if !strings.HasPrefix(s, "#") {
		buf.WriteString("0")
		return
	}
	writeBool(buf, ctx.DB.ParseRef(s) != gamedb.Nothing)
}

// null() swallows its output; used for pure side effects.
func fnNull(_ *eval.Context, _ []string, _ *strings.Builder) {}

// lit() suppresses evaluation of its argument entirely.
func fnLit(_ *eval.Context, args []string, buf *strings.Builder) {
	buf.WriteString(args[0])
}

// setq(reg, value) stores a register and yields nothing; r(reg) reads
// one back. Registers named beyond 0-9 land in the extended table.
func fnSetq(ctx *eval.Context, args []string, buf *strings.Builder) {
	reg := strings.TrimSpace(args[0])
	if len(reg) == 1 && ctx.SetQReg(reg[0], args[1]) {
		return
	}
	if reg == "" {
		buf.WriteString("#-1 INVALID REGISTER")
		return
	}
	ctx.XRegs[strings.ToLower(reg)] = args[1]
}

// setr() is setq() that also yields the value.
func fnSetr(ctx *eval.Context, args []string, buf *strings.Builder) {
	fnSetq(ctx, args, buf)
	buf.WriteString(args[1])
}

func fnR(ctx *eval.Context, args []string, buf *strings.Builder) {
	reg := strings.TrimSpace(args[0])
	if len(reg) == 1 {
		if v := ctx.GetQReg(reg[0]); v != "" {
			buf.WriteString(v)
			return
		}
	}
	buf.WriteString(ctx.XRegs[strings.ToLower(reg)])
}

func fnS(ctx *eval.Context, args []string, buf *strings.Builder) {
	buf.WriteString(ctx.EvalNested(args[0]))
}

func fnVersion(_ *eval.Context, _ []string, buf *strings.Builder) {
	buf.WriteString("WebMUSH 1.0")
}

func registerMiscFns(r *eval.Registry) {
	r.Register("isdbref", fnIsdbref, 1, 0)
	r.Register("null", fnNull, -1, eval.FnVarArgs)
	r.Register("lit", fnLit, 1, eval.FnNoEval)
	r.Register("setq", fnSetq, 2, 0)
	r.Register("setr", fnSetr, 2, 0)
	r.Register("r", fnR, 1, 0)
	r.Register("s", fnS, 1, eval.FnNoEval)
	r.Register("version", fnVersion, 0, 0)
}
