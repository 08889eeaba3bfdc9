package expr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func TestConstructorsFold(t *testing.T) {
	x := Sym("x")

	assert.True(t, Add(Const(1), Const(2)).Equal(Const(3)))
	assert.True(t, Add(x, Zero).Equal(x))
	assert.True(t, Mul(x, One).Equal(x))
	assert.True(t, Mul(x, Zero).Equal(Zero))
	assert.True(t, Pow(x, One).Equal(x))
	assert.True(t, Pow(x, Zero).Equal(One))
	assert.True(t, Pow(Const(2), Const(3)).Equal(Const(8)))
	assert.True(t, Exp(Zero).Equal(One))

	// nested sums flatten, constants collect at the end
	s := Add(Add(x, Const(1)), Add(Sym("y"), Const(2)))
	sum, ok := s.(*Sum)
	require.True(t, ok)
	require.Len(t, sum.Terms(), 3)
	assert.True(t, sum.Terms()[2].Equal(Const(3)))

	// negative base with fractional exponent stays symbolic
	_, ok = Pow(Const(-2), Const(0.5)).(*Power)
	assert.True(t, ok)
}

func TestEval(t *testing.T) {
	x, y := Sym("x"), Sym("y")
	e := Add(Mul(Const(3), x), Ln(Add(One, Exp(y))), Div(x, y))

	v, err := e.Eval(Bindings{"x": 2, "y": 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 6+math.Log(1+math.Exp(0.5))+4, v, 1e-12)

	_, err = e.Eval(Bindings{"x": 2})
	assert.ErrorContains(t, err, "unbound symbol y")

	_, err = Ln(x).Eval(Bindings{"x": -1})
	assert.Error(t, err)

	_, err = Pow(x, Const(0.5)).Eval(Bindings{"x": -4})
	assert.Error(t, err)
}

func TestSubstituteCollapsesToConstant(t *testing.T) {
	x, y := Sym("x"), Sym("y")
	e := Mul(Sqrt(Add(Square(x), Square(y))), Sign(x))

	r := e.Substitute(x, Const(3)).Substitute(y, Const(-4))
	c, ok := r.(*Constant)
	require.True(t, ok, "got %s", r)
	assert.InDelta(t, 5.0, c.Value(), 1e-12)
}

func TestSignedPow(t *testing.T) {
	x := Sym("x")
	tests := []struct {
		name string
		x, y float64
		want float64
	}{
		{"positive", 2.5, 1.437, math.Pow(2.5, 1.437)},
		{"negative fractional", -2.5, 1.437, -math.Pow(2.5, 1.437)},
		{"zero", 0, 1.437, 0},
		{"zero integer exponent", 0, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := SignedPow(x, Const(tt.y)).Eval(Bindings{"x": tt.x})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, 1e-12)

			abs, err := AbsPow(x, Const(tt.y)).Eval(Bindings{"x": tt.x})
			require.NoError(t, err)
			assert.InDelta(t, math.Pow(math.Abs(tt.x), tt.y), abs, 1e-12)
		})
	}
}

func TestDiffMatchesFiniteDifference(t *testing.T) {
	x := Sym("x")
	exprs := map[string]Expr{
		"poly":      Add(Mul(Const(3), Square(x)), Mul(Const(-2), x), Const(7)),
		"softplus":  Ln(Add(One, Exp(Mul(Const(4), x)))),
		"rsqrt":     Div(Const(2), Sqrt(Add(Const(1672), Square(x)))),
		"signedpow": SignedPow(x, Const(1.437)),
		"abspow":    AbsPow(x, Const(1.437)),
		"varpow":    Pow(Add(Const(2), Square(x)), x),
	}
	points := []float64{-1.7, -0.3, 0.4, 2.2}

	for name, e := range exprs {
		d := e.Diff(x)
		for _, p := range points {
			f := func(v float64) float64 {
				r, err := e.Eval(Bindings{"x": v})
				require.NoError(t, err)
				return r
			}
			want := fd.Derivative(f, p, &fd.Settings{Formula: fd.Central, Step: 1e-6})
			got, err := d.Eval(Bindings{"x": p})
			require.NoError(t, err, name)
			assert.InDelta(t, want, got, 1e-5*math.Max(1, math.Abs(want)), "%s at %v", name, p)
		}
	}
}

func TestDiffIndependentIsZero(t *testing.T) {
	x, y := Sym("x"), Sym("y")
	e := Mul(Exp(y), Ln(y))
	assert.True(t, e.Diff(x).Equal(Zero))
	assert.True(t, Sign(x).Diff(x).Equal(Zero))
}

func TestSymbols(t *testing.T) {
	a, b := Sym("b"), Sym("a")
	e := Add(Mul(a, b), Exp(a), Const(2))

	syms := Symbols(e)
	require.Len(t, syms, 2)
	assert.Equal(t, "a", syms[0].Name())
	assert.Equal(t, "b", syms[1].Name())
	assert.True(t, Depends(e, a))
	assert.False(t, Depends(e, Sym("c")))
}

func TestString(t *testing.T) {
	x, y := Sym("x"), Sym("y")
	assert.Equal(t, "(x - y)", Sub(x, y).String())
	assert.Equal(t, "exp(x + 1)", Exp(Add(x, One)).String())
	assert.Equal(t, "2*x", Mul(Const(2), x).String())
}
