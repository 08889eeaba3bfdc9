// Package expr is the symbolic layer the device models are written against.
//
// Expressions are immutable trees built through the package constructors
// (Add, Mul, Pow, Exp, Ln, Abs, Sign, ...). The constructors fold constants
// and flatten nested sums and products, so substituting numbers for every
// symbol collapses an expression to a *Constant. Devices only build
// expressions; solvers differentiate them with Diff and evaluate them with
// Eval.
package expr

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Bindings maps symbol names to numeric values for Eval.
type Bindings map[string]float64

type Expr interface {
	String() string
	// Eval computes the numeric value under b. Unbound symbols and
	// non-finite intermediate results are errors.
	Eval(b Bindings) (float64, error)
	// Diff returns d(e)/dx.
	Diff(x *Symbol) Expr
	// Substitute replaces every occurrence of x with v.
	Substitute(x *Symbol, v Expr) Expr
	Equal(other Expr) bool

	children() []Expr
}

// Constant

type Constant struct{ v float64 }

var (
	Zero     = &Constant{v: 0}
	One      = &Constant{v: 1}
	MinusOne = &Constant{v: -1}
)

func Const(v float64) *Constant {
	switch v {
	case 0:
		return Zero
	case 1:
		return One
	case -1:
		return MinusOne
	}
	return &Constant{v: v}
}

func (c *Constant) Value() float64 { return c.v }

func (c *Constant) String() string { return strconv.FormatFloat(c.v, 'g', -1, 64) }

func (c *Constant) Eval(Bindings) (float64, error) { return finite("constant", c.v) }

func (c *Constant) Diff(*Symbol) Expr { return Zero }

func (c *Constant) Substitute(*Symbol, Expr) Expr { return c }

func (c *Constant) Equal(other Expr) bool {
	o, ok := other.(*Constant)
	return ok && (o.v == c.v || (math.IsNaN(o.v) && math.IsNaN(c.v)))
}

func (c *Constant) children() []Expr { return nil }

// Symbol

type Symbol struct{ name string }

func Sym(name string) *Symbol { return &Symbol{name: name} }

func (s *Symbol) Name() string   { return s.name }
func (s *Symbol) String() string { return s.name }

func (s *Symbol) Eval(b Bindings) (float64, error) {
	v, ok := b[s.name]
	if !ok {
		return 0, fmt.Errorf("expr: unbound symbol %s", s.name)
	}
	return finite(s.name, v)
}

func (s *Symbol) Diff(x *Symbol) Expr {
	if s.name == x.name {
		return One
	}
	return Zero
}

func (s *Symbol) Substitute(x *Symbol, v Expr) Expr {
	if s.name == x.name {
		return v
	}
	return s
}

func (s *Symbol) Equal(other Expr) bool {
	o, ok := other.(*Symbol)
	return ok && o.name == s.name
}

func (s *Symbol) children() []Expr { return nil }

// Sum

type Sum struct{ terms []Expr }

// Add returns the sum of terms. Nested sums are flattened, constants are
// folded into a single trailing term and zeros are dropped.
func Add(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	c := 0.0
	for _, t := range terms {
		switch t := t.(type) {
		case *Constant:
			c += t.v
		case *Sum:
			for _, u := range t.terms {
				if k, ok := u.(*Constant); ok {
					c += k.v
					continue
				}
				flat = append(flat, u)
			}
		default:
			flat = append(flat, t)
		}
	}
	if c != 0 {
		flat = append(flat, Const(c))
	}
	switch len(flat) {
	case 0:
		return Zero
	case 1:
		return flat[0]
	}
	return &Sum{terms: flat}
}

func (s *Sum) Terms() []Expr { return append([]Expr(nil), s.terms...) }

func (s *Sum) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, t := range s.terms {
		str := t.String()
		if i > 0 {
			if strings.HasPrefix(str, "-") {
				sb.WriteString(" - ")
				str = str[1:]
			} else {
				sb.WriteString(" + ")
			}
		}
		sb.WriteString(str)
	}
	sb.WriteByte(')')
	return sb.String()
}

func (s *Sum) Eval(b Bindings) (float64, error) {
	total := 0.0
	for _, t := range s.terms {
		v, err := t.Eval(b)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return finite("sum", total)
}

func (s *Sum) Diff(x *Symbol) Expr {
	d := make([]Expr, len(s.terms))
	for i, t := range s.terms {
		d[i] = t.Diff(x)
	}
	return Add(d...)
}

func (s *Sum) Substitute(x *Symbol, v Expr) Expr {
	r := make([]Expr, len(s.terms))
	for i, t := range s.terms {
		r[i] = t.Substitute(x, v)
	}
	return Add(r...)
}

func (s *Sum) Equal(other Expr) bool {
	o, ok := other.(*Sum)
	return ok && equalAll(s.terms, o.terms)
}

func (s *Sum) children() []Expr { return s.terms }

// Product

type Product struct{ factors []Expr }

// Mul returns the product of factors. Nested products are flattened and
// constants are folded into a single leading coefficient; a zero
// coefficient collapses the product to Zero.
func Mul(factors ...Expr) Expr {
	flat := make([]Expr, 0, len(factors))
	c := 1.0
	for _, f := range factors {
		switch f := f.(type) {
		case *Constant:
			c *= f.v
		case *Product:
			for _, u := range f.factors {
				if k, ok := u.(*Constant); ok {
					c *= k.v
					continue
				}
				flat = append(flat, u)
			}
		default:
			flat = append(flat, f)
		}
	}
	if c == 0 {
		return Zero
	}
	if len(flat) == 0 {
		return Const(c)
	}
	if c != 1 {
		flat = append([]Expr{Const(c)}, flat...)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Product{factors: flat}
}

func (p *Product) Factors() []Expr { return append([]Expr(nil), p.factors...) }

func (p *Product) String() string {
	parts := make([]string, 0, len(p.factors))
	neg := false
	for i, f := range p.factors {
		if k, ok := f.(*Constant); ok && i == 0 && k.v == -1 {
			neg = true
			continue
		}
		parts = append(parts, wrap(f))
	}
	str := strings.Join(parts, "*")
	if neg {
		return "-" + str
	}
	return str
}

func (p *Product) Eval(b Bindings) (float64, error) {
	total := 1.0
	for _, f := range p.factors {
		v, err := f.Eval(b)
		if err != nil {
			return 0, err
		}
		total *= v
	}
	return finite("product", total)
}

func (p *Product) Diff(x *Symbol) Expr {
	terms := make([]Expr, 0, len(p.factors))
	for i, f := range p.factors {
		df := f.Diff(x)
		if df.Equal(Zero) {
			continue
		}
		rest := make([]Expr, 0, len(p.factors))
		rest = append(rest, p.factors[:i]...)
		rest = append(rest, df)
		rest = append(rest, p.factors[i+1:]...)
		terms = append(terms, Mul(rest...))
	}
	return Add(terms...)
}

func (p *Product) Substitute(x *Symbol, v Expr) Expr {
	r := make([]Expr, len(p.factors))
	for i, f := range p.factors {
		r[i] = f.Substitute(x, v)
	}
	return Mul(r...)
}

func (p *Product) Equal(other Expr) bool {
	o, ok := other.(*Product)
	return ok && equalAll(p.factors, o.factors)
}

func (p *Product) children() []Expr { return p.factors }

// Power

type Power struct{ base, exp Expr }

// Pow returns base^exp. Constant operands are folded when the result is
// finite; a negative base with a fractional exponent stays symbolic so that
// evaluating it reports the error.
func Pow(base, exp Expr) Expr {
	if e, ok := exp.(*Constant); ok {
		switch e.v {
		case 0:
			return One
		case 1:
			return base
		}
		if b, ok := base.(*Constant); ok {
			if r := math.Pow(b.v, e.v); !math.IsNaN(r) && !math.IsInf(r, 0) {
				return Const(r)
			}
		}
	}
	return &Power{base: base, exp: exp}
}

func (p *Power) Base() Expr     { return p.base }
func (p *Power) Exponent() Expr { return p.exp }

func (p *Power) String() string { return wrap(p.base) + "^" + wrap(p.exp) }

func (p *Power) Eval(b Bindings) (float64, error) {
	bv, err := p.base.Eval(b)
	if err != nil {
		return 0, err
	}
	ev, err := p.exp.Eval(b)
	if err != nil {
		return 0, err
	}
	return finite("pow", math.Pow(bv, ev))
}

func (p *Power) Diff(x *Symbol) Expr {
	db := p.base.Diff(x)
	if c, ok := p.exp.(*Constant); ok {
		if db.Equal(Zero) {
			return Zero
		}
		return Mul(c, Pow(p.base, Const(c.v-1)), db)
	}
	de := p.exp.Diff(x)
	// d(u^v) = u^v * (v'*ln(u) + v*u'/u)
	return Mul(p, Add(Mul(de, Ln(p.base)), Mul(p.exp, db, Pow(p.base, MinusOne))))
}

func (p *Power) Substitute(x *Symbol, v Expr) Expr {
	return Pow(p.base.Substitute(x, v), p.exp.Substitute(x, v))
}

func (p *Power) Equal(other Expr) bool {
	o, ok := other.(*Power)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

func (p *Power) children() []Expr { return []Expr{p.base, p.exp} }

// helpers

func Neg(x Expr) Expr        { return Mul(MinusOne, x) }
func Sub(a, b Expr) Expr     { return Add(a, Neg(b)) }
func Div(a, b Expr) Expr     { return Mul(a, Pow(b, MinusOne)) }
func Sqrt(x Expr) Expr       { return Pow(x, Const(0.5)) }
func Square(x Expr) Expr     { return Mul(x, x) }
func Reciprocal(x Expr) Expr { return Pow(x, MinusOne) }

// Symbols returns the distinct free symbols of e sorted by name.
func Symbols(e Expr) []*Symbol {
	seen := make(map[string]*Symbol)
	var walk func(Expr)
	walk = func(e Expr) {
		if s, ok := e.(*Symbol); ok {
			seen[s.name] = s
			return
		}
		for _, c := range e.children() {
			walk(c)
		}
	}
	walk(e)

	out := make([]*Symbol, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Depends reports whether x occurs in e.
func Depends(e Expr, x *Symbol) bool {
	if s, ok := e.(*Symbol); ok {
		return s.name == x.name
	}
	for _, c := range e.children() {
		if Depends(c, x) {
			return true
		}
	}
	return false
}

func equalAll(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func wrap(e Expr) string {
	switch e := e.(type) {
	case *Symbol, *Call:
		return e.String()
	case *Constant:
		if e.v < 0 {
			return "(" + e.String() + ")"
		}
		return e.String()
	case *Sum:
		return e.String()
	}
	return "(" + e.String() + ")"
}

func finite(op string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("expr: %s evaluated to %v", op, v)
	}
	return v, nil
}
