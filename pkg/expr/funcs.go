package expr

import (
	"fmt"
	"math"
)

type Func int

const (
	FuncExp Func = iota
	FuncLn
	FuncAbs
	FuncSign
)

func (f Func) String() string {
	switch f {
	case FuncExp:
		return "exp"
	case FuncLn:
		return "ln"
	case FuncAbs:
		return "abs"
	case FuncSign:
		return "sign"
	}
	return fmt.Sprintf("func(%d)", int(f))
}

func (f Func) apply(x float64) float64 {
	switch f {
	case FuncExp:
		return math.Exp(x)
	case FuncLn:
		return math.Log(x)
	case FuncAbs:
		return math.Abs(x)
	case FuncSign:
		return sign(x)
	}
	return math.NaN()
}

// Call is an elementary function applied to one argument.
type Call struct {
	fn  Func
	arg Expr
}

func Exp(x Expr) Expr  { return call(FuncExp, x) }
func Ln(x Expr) Expr   { return call(FuncLn, x) }
func Abs(x Expr) Expr  { return call(FuncAbs, x) }
func Sign(x Expr) Expr { return call(FuncSign, x) }

func call(fn Func, x Expr) Expr {
	if c, ok := x.(*Constant); ok {
		if r := fn.apply(c.v); !math.IsNaN(r) && !math.IsInf(r, 0) {
			return Const(r)
		}
	}
	return &Call{fn: fn, arg: x}
}

func (c *Call) Func() Func { return c.fn }
func (c *Call) Arg() Expr  { return c.arg }

func (c *Call) String() string { return c.fn.String() + "(" + trimParens(c.arg.String()) + ")" }

func (c *Call) Eval(b Bindings) (float64, error) {
	x, err := c.arg.Eval(b)
	if err != nil {
		return 0, err
	}
	return finite(c.fn.String(), c.fn.apply(x))
}

func (c *Call) Diff(x *Symbol) Expr {
	du := c.arg.Diff(x)
	if du.Equal(Zero) {
		return Zero
	}
	switch c.fn {
	case FuncExp:
		return Mul(c, du)
	case FuncLn:
		return Div(du, c.arg)
	case FuncAbs:
		return Mul(Sign(c.arg), du)
	}
	// sign is piecewise constant
	return Zero
}

func (c *Call) Substitute(x *Symbol, v Expr) Expr {
	return call(c.fn, c.arg.Substitute(x, v))
}

func (c *Call) Equal(other Expr) bool {
	o, ok := other.(*Call)
	return ok && o.fn == c.fn && c.arg.Equal(o.arg)
}

func (c *Call) children() []Expr { return []Expr{c.arg} }

// SignedPow returns sign(x)*|x|^y, the odd extension of |x|^y.
func SignedPow(x, y Expr) Expr {
	return Mul(Sign(x), Pow(Abs(x), y))
}

// AbsPow returns |x|^y.
func AbsPow(x, y Expr) Expr {
	return Pow(Abs(x), y)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func trimParens(s string) string {
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		depth := 0
		for i, r := range s {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 && i < len(s)-1 {
				return s
			}
		}
		return s[1 : len(s)-1]
	}
	return s
}
