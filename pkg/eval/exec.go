package eval

import (
	"fmt"
	"strings"
)

// Eval evaluates a softcode template string and returns the result. This
// is the top-level entry point: budgets reset here and nowhere else.
//
// Scanning follows a small state machine: plain text is copied verbatim;
// '%' starts a substitution; '[' opens a function evaluation region in
// which name(args) calls are mandatory; '\' escapes the next character.
func (ctx *Context) Eval(input string) string {
	ctx.depth = 0
	ctx.steps = 0
	ctx.aborted = false
	var buf strings.Builder
	buf.Grow(len(input) * 2)
	ctx.exec(&buf, input, false)
	return buf.String()
}

// EvalNested evaluates a fragment within the current evaluation, sharing
// its depth and step budgets. Handlers with lazy arguments (iter, switch,
// if) use this to evaluate branches on demand.
func (ctx *Context) EvalNested(input string) string {
	if ctx.depth >= ctx.NestLimit {
		ctx.aborted = true
		return ErrRecursionLimit
	}
	var buf strings.Builder
	ctx.depth++
	ctx.exec(&buf, input, true)
	ctx.depth--
	return buf.String()
}

// exec is the internal scanner. fnMode is true inside a [...] region,
// where a name followed by '(' must resolve to a registered function.
func (ctx *Context) exec(buf *strings.Builder, input string, fnMode bool) {
	pos := 0
	nameStart := buf.Len() // where a potential function name begins

	for pos < len(input) {
		ch := input[pos]

		switch ch {
		case '\\':
			pos++
			if pos < len(input) {
				buf.WriteByte(input[pos])
				pos++
			}

		case '[':
			inner, close, found := parseTo(input, pos+1, ']')
			if !found {
				buf.WriteByte('[')
				pos++
				break
			}
			if ctx.depth >= ctx.NestLimit {
				ctx.aborted = true
				buf.WriteString(ErrRecursionLimit)
			} else {
				ctx.depth++
				ctx.exec(buf, inner, true)
				ctx.depth--
			}
			pos = close + 1

		case '%':
			pos = ctx.subst(buf, input, pos+1)

		case '(':
			if !fnMode {
				buf.WriteByte('(')
				pos++
				break
			}
			name := strings.TrimSpace(buf.String()[nameStart:])
			if name == "" {
				buf.WriteByte('(')
				pos++
				break
			}
			pos = ctx.invoke(buf, input, pos, nameStart, name)
			if pos < 0 {
				return // unknown function: sentinel written, region aborted
			}
			fnMode = false

		case ')', ']', ' ', ',':
			buf.WriteByte(ch)
			pos++

		default:
			start := pos
			for pos < len(input) && !isSpecial(input[pos]) {
				pos++
			}
			buf.WriteString(input[start:pos])
		}

		if ch == ')' || ch == ']' || ch == ' ' || ch == ',' {
			nameStart = buf.Len()
		}
	}
}

// invoke handles a function call at input[pos] == '('. The function name
// has already been written to buf starting at nameStart; it is backed out
// before the result is written. Returns the scan position after the
// closing ')', or -1 to abort the enclosing region.
func (ctx *Context) invoke(buf *strings.Builder, input string, pos, nameStart int, name string) int {
	prefix := buf.String()[:nameStart]

	fn, known := ctx.Funcs.Resolve(name)
	if !known {
		buf.Reset()
		buf.WriteString(prefix)
		fmt.Fprintf(buf, "#-1 FUNCTION (%s) NOT FOUND", strings.ToUpper(name))
		return -1
	}

	args, close, found := parseArgList(input, pos+1)
	if !found {
		buf.WriteByte('(')
		return pos + 1
	}

	var evaled []string
	if fn.Flags&FnNoEval != 0 {
		evaled = args
	} else {
		evaled = make([]string, len(args))
		for i, arg := range args {
			evaled[i] = ctx.EvalNested(arg)
		}
	}

	// parseArgList yields one empty arg for "()"; normalize for
	// zero-argument functions.
	if len(evaled) == 1 && evaled[0] == "" && fn.NArgs == 0 && fn.Flags&FnVarArgs == 0 {
		evaled = nil
	}

	buf.Reset()
	buf.WriteString(prefix)

	ctx.steps++
	switch {
	case ctx.steps >= ctx.InvokeLimit:
		ctx.aborted = true
		buf.WriteString(ErrInvocationLimit)
	case ctx.depth >= ctx.NestLimit:
		ctx.aborted = true
		buf.WriteString(ErrRecursionLimit)
	case !arityOK(fn, len(evaled)):
		fmt.Fprintf(buf, "#-1 FUNCTION (%s) EXPECTS %s ARGUMENTS BUT GOT %d",
			fn.Name, arityWord(fn), len(evaled))
	default:
		ctx.depth++
		fn.Handler(ctx, evaled, buf)
		ctx.depth--
	}
	return close + 1
}

func arityOK(fn *Function, n int) bool {
	// A negative NArgs is a minimum and binds even for varargs functions;
	// handlers index up to that many arguments unconditionally.
	if fn.NArgs < 0 {
		return n >= -fn.NArgs
	}
	if fn.Flags&FnVarArgs != 0 {
		return true
	}
	return n == fn.NArgs
}

func arityWord(fn *Function) string {
	if fn.NArgs < 0 {
		return fmt.Sprintf("AT LEAST %d", -fn.NArgs)
	}
	return fmt.Sprintf("%d", fn.NArgs)
}

// subst handles a %-substitution starting at input[pos] (the character
// after '%'). Unrecognized escapes pass through unchanged; substitution
// is lenient and never fatal.
func (ctx *Context) subst(buf *strings.Builder, input string, pos int) int {
	if pos >= len(input) {
		buf.WriteByte('%')
		return pos
	}
	ch := input[pos]
	switch ch {
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		i := int(ch - '0')
		if i < len(ctx.Args) {
			buf.WriteString(ctx.Args[i])
		}
		return pos + 1

	case '%':
		buf.WriteByte('%')
		return pos + 1

	case '#':
		fmt.Fprintf(buf, "#%d", ctx.Enactor)
		return pos + 1

	case '!':
		fmt.Fprintf(buf, "#%d", ctx.Executor)
		return pos + 1

	case '@':
		fmt.Fprintf(buf, "#%d", ctx.Caller)
		return pos + 1

	case 'n', 'N':
		name := ctx.DB.Name(ctx.Enactor)
		if ch == 'N' && name != "" {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		buf.WriteString(name)
		return pos + 1

	case 'l', 'L':
		fmt.Fprintf(buf, "#%d", ctx.DB.Location(ctx.Enactor))
		return pos + 1

	case 'r', 'R':
		buf.WriteByte('\n')
		return pos + 1

	case 't', 'T':
		buf.WriteByte('\t')
		return pos + 1

	case 'b', 'B':
		buf.WriteByte(' ')
		return pos + 1

	case 'q', 'Q':
		pos++
		if pos >= len(input) {
			return pos
		}
		if input[pos] == '<' {
			end := strings.IndexByte(input[pos:], '>')
			if end < 0 {
				return pos
			}
			name := strings.ToLower(input[pos+1 : pos+end])
			buf.WriteString(ctx.XRegs[name])
			return pos + end + 1
		}
		buf.WriteString(ctx.GetQReg(input[pos]))
		return pos + 1

	default:
		buf.WriteByte('%')
		buf.WriteByte(ch)
		return pos + 1
	}
}

// parseTo scans for a closing delimiter, respecting nesting of [] and ()
// and skipping %- and \-escaped characters. Returns the content before
// the delimiter, the delimiter position, and whether it was found.
func parseTo(input string, pos int, delim byte) (string, int, bool) {
	start := pos
	var stack []byte
	for pos < len(input) {
		ch := input[pos]
		switch ch {
		case '\\', '%':
			pos++
			if pos < len(input) {
				pos++
			}
			continue
		case '[':
			stack = append(stack, ']')
		case '(':
			stack = append(stack, ')')
		case ']', ')':
			matched := false
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == ch {
					stack = stack[:i]
					matched = true
					break
				}
			}
			if !matched && ch == delim {
				return input[start:pos], pos, true
			}
		default:
			if ch == delim && len(stack) == 0 {
				return input[start:pos], pos, true
			}
		}
		pos++
	}
	return input[start:], pos, false
}

// parseArgList splits a function argument string on commas at depth zero
// relative to the function's own parentheses. Nested calls and nested
// parentheses within an argument are never split on.
func parseArgList(input string, pos int) ([]string, int, bool) {
	var args []string
	start := pos
	depth := 0
	for pos < len(input) {
		ch := input[pos]
		switch ch {
		case '\\', '%':
			pos++
			if pos < len(input) {
				pos++
			}
			continue
		case '[', '(':
			depth++
		case ']':
			depth--
		case ')':
			if depth == 0 {
				args = append(args, input[start:pos])
				return args, pos, true
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, input[start:pos])
				start = pos + 1
			}
		}
		pos++
	}
	return nil, pos, false
}

// isSpecial reports characters the scanner handles out of line.
func isSpecial(ch byte) bool {
	switch ch {
	case '\\', '[', '(', '%', ')', ']', ' ', ',':
		return true
	}
	return false
}
