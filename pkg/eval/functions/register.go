// Package functions provides the built-in softcode function library.
// Handlers are grouped by concern; RegisterAll installs the whole set
// into a registry at startup.
package functions

import "github.com/kochj23/webmush/pkg/eval"

// RegisterAll installs every built-in function group.
func RegisterAll(r *eval.Registry) {
	registerStringFns(r)
	registerMathFns(r)
	registerLogicFns(r)
	registerCondFns(r)
	registerListFns(r)
	registerObjectFns(r)
	registerTimeFns(r)
	registerMiscFns(r)
}
