package functions

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/kochj23/webmush/pkg/eval"
)

func fnAdd(_ *eval.Context, args []string, buf *strings.Builder) {
	sum := 0.0
	for _, a := range args {
		sum += toFloat(a)
	}
	writeFloat(buf, sum)
}

func fnSub(_ *eval.Context, args []string, buf *strings.Builder) {
	writeFloat(buf, toFloat(args[0])-toFloat(args[1]))
}

func fnMul(_ *eval.Context, args []string, buf *strings.Builder) {
	prod := 1.0
	for _, a := range args {
		prod *= toFloat(a)
	}
	writeFloat(buf, prod)
}

// div() is integer division; fdiv() keeps the fraction.
func fnDiv(_ *eval.Context, args []string, buf *strings.Builder) {
	bottom := toInt(args[1])
	if bottom == 0 {
		buf.WriteString("#-1 DIVISION BY ZERO")
		return
	}
	writeInt(buf, toInt(args[0])/bottom)
}

func fnFdiv(_ *eval.Context, args []string, buf *strings.Builder) {
	bottom := toFloat(args[1])
	if bottom == 0 {
		buf.WriteString("#-1 DIVISION BY ZERO")
		return
	}
	writeFloat(buf, toFloat(args[0])/bottom)
}

func fnMod(_ *eval.Context, args []string, buf *strings.Builder) {
	bottom := toInt(args[1])
	if bottom == 0 {
		buf.WriteString("#-1 DIVISION BY ZERO")
		return
	}
	writeInt(buf, toInt(args[0])%bottom)
}

func fnAbs(_ *eval.Context, args []string, buf *strings.Builder) {
	writeFloat(buf, math.Abs(toFloat(args[0])))
}

func fnSign(_ *eval.Context, args []string, buf *strings.Builder) {
	v := toFloat(args[0])
	switch {
	case v > 0:
		buf.WriteString("1")
	case v < 0:
		buf.WriteString("-1")
	default:
		buf.WriteString("0")
	}
}

func fnMin(_ *eval.Context, args []string, buf *strings.Builder) {
	best := toFloat(args[0])
	for _, a := range args[1:] {
		if v := toFloat(a); v < best {
			best = v
		}
	}
	writeFloat(buf, best)
}

func fnMax(_ *eval.Context, args []string, buf *strings.Builder) {
	best := toFloat(args[0])
	for _, a := range args[1:] {
		if v := toFloat(a); v > best {
			best = v
		}
	}
	writeFloat(buf, best)
}

// bound(n, lo, hi) clamps n into [lo, hi].
func fnBound(_ *eval.Context, args []string, buf *strings.Builder) {
	v := toFloat(args[0])
	if lo := toFloat(args[1]); v < lo {
		v = lo
	}
	if hi := toFloat(args[2]); v > hi {
		v = hi
	}
	writeFloat(buf, v)
}

func fnInc(_ *eval.Context, args []string, buf *strings.Builder) {
	writeInt(buf, toInt(args[0])+1)
}

func fnDec(_ *eval.Context, args []string, buf *strings.Builder) {
	writeInt(buf, toInt(args[0])-1)
}

func fnFloor(_ *eval.Context, args []string, buf *strings.Builder) {
	writeFloat(buf, math.Floor(toFloat(args[0])))
}

func fnCeil(_ *eval.Context, args []string, buf *strings.Builder) {
	writeFloat(buf, math.Ceil(toFloat(args[0])))
}

// round(n, places)
func fnRound(_ *eval.Context, args []string, buf *strings.Builder) {
	places := toInt(args[1])
	if places < 0 || places > 12 {
		places = 0
	}
	shift := math.Pow(10, float64(places))
	writeFloat(buf, math.Round(toFloat(args[0])*shift)/shift)
}

func fnTrunc(_ *eval.Context, args []string, buf *strings.Builder) {
	writeInt(buf, int(toFloat(args[0])))
}

func fnSqrt(_ *eval.Context, args []string, buf *strings.Builder) {
	v := toFloat(args[0])
	if v < 0 {
		buf.WriteString("#-1 SQUARE ROOT OF NEGATIVE")
		return
	}
	writeFloat(buf, math.Sqrt(v))
}

func fnPower(_ *eval.Context, args []string, buf *strings.Builder) {
	writeFloat(buf, math.Pow(toFloat(args[0]), toFloat(args[1])))
}

func fnExp(_ *eval.Context, args []string, buf *strings.Builder) {
	writeFloat(buf, math.Exp(toFloat(args[0])))
}

func fnLn(_ *eval.Context, args []string, buf *strings.Builder) {
	v := toFloat(args[0])
	if v <= 0 {
		buf.WriteString("#-1 LOGARITHM OF NONPOSITIVE")
		return
	}
	writeFloat(buf, math.Log(v))
}

func fnPi(_ *eval.Context, _ []string, buf *strings.Builder) {
	writeFloat(buf, math.Pi)
}

func fnE(_ *eval.Context, _ []string, buf *strings.Builder) {
	writeFloat(buf, math.E)
}

func fnGcd(_ *eval.Context, args []string, buf *strings.Builder) {
	a, b := toInt(args[0]), toInt(args[1])
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		a = -a
	}
	writeInt(buf, a)
}

func fnLcm(_ *eval.Context, args []string, buf *strings.Builder) {
	a, b := toInt(args[0]), toInt(args[1])
	g := a
	for t := b; t != 0; {
		g, t = t, g%t
	}
	if g == 0 {
		buf.WriteString("0")
		return
	}
	v := a / g * b
	if v < 0 {
		v = -v
	}
	writeInt(buf, v)
}

// rand(n) yields 0..n-1; rand(lo, hi) yields lo..hi inclusive.
func fnRand(_ *eval.Context, args []string, buf *strings.Builder) {
	switch len(args) {
	case 1:
		n := toInt(args[0])
		if n <= 0 {
			buf.WriteString("0")
			return
		}
		writeInt(buf, rand.IntN(n))
	default:
		lo, hi := toInt(args[0]), toInt(args[1])
		if hi < lo {
			lo, hi = hi, lo
		}
		writeInt(buf, lo+rand.IntN(hi-lo+1))
	}
}

// dice(count, sides) rolls and sums.
func fnDice(_ *eval.Context, args []string, buf *strings.Builder) {
	count, sides := toInt(args[0]), toInt(args[1])
	if count <= 0 || sides <= 0 || count > 100 {
		buf.WriteString("#-1 BAD DICE")
		return
	}
	sum := 0
	for i := 0; i < count; i++ {
		sum += 1 + rand.IntN(sides)
	}
	writeInt(buf, sum)
}

func fnDie(_ *eval.Context, args []string, buf *strings.Builder) {
	sides := toInt(args[0])
	if sides <= 0 {
		buf.WriteString("#-1 BAD DIE")
		return
	}
	writeInt(buf, 1+rand.IntN(sides))
}

func fnIsnum(_ *eval.Context, args []string, buf *strings.Builder) {
	writeBool(buf, isNumeric(args[0]))
}

func registerMathFns(r *eval.Registry) {
	r.Register("add", fnAdd, -2, eval.FnVarArgs)
	r.Register("sub", fnSub, 2, 0)
	r.Register("mul", fnMul, -2, eval.FnVarArgs)
	r.Register("div", fnDiv, 2, 0)
	r.Register("fdiv", fnFdiv, 2, 0)
	r.Register("mod", fnMod, 2, 0)
	r.Register("abs", fnAbs, 1, 0)
	r.Register("sign", fnSign, 1, 0)
	r.Register("min", fnMin, -1, eval.FnVarArgs)
	r.Register("max", fnMax, -1, eval.FnVarArgs)
	r.Register("bound", fnBound, 3, 0)
	r.Register("inc", fnInc, 1, 0)
	r.Register("dec", fnDec, 1, 0)
	r.Register("floor", fnFloor, 1, 0)
	r.Register("ceil", fnCeil, 1, 0)
	r.Register("round", fnRound, 2, 0)
	r.Register("trunc", fnTrunc, 1, 0)
	r.Register("sqrt", fnSqrt, 1, 0)
	r.Register("power", fnPower, 2, 0)
	r.Register("exp", fnExp, 1, 0)
	r.Register("ln", fnLn, 1, 0)
	r.Register("pi", fnPi, 0, 0)
	r.Register("e", fnE, 0, 0)
	r.Register("gcd", fnGcd, 2, 0)
	r.Register("lcm", fnLcm, 2, 0)
	r.Register("rand", fnRand, -1, eval.FnVarArgs)
	r.Register("dice", fnDice, 2, 0)
	r.Register("die", fnDie, 1, 0)
	r.Register("isnum", fnIsnum, 1, 0)
}
