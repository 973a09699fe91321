package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_Binary_RejectsUnknownOperator(t *testing.T) {
	f := NewFactory()
	left := f.Literal(Position{}, NewLiteralNumber(1))
	right := f.Literal(Position{}, NewLiteralNumber(2))

	assert.Panics(t, func() {
		f.Binary(Position{}, BinaryOp("???"), left, right)
	})
}

func TestFactory_NodeIDsAreUniqueAndMonotone(t *testing.T) {
	f := NewFactory()
	a := f.Literal(Position{}, NewLiteralNumber(1))
	b := f.Literal(Position{}, NewLiteralNumber(2))
	require.NotEqual(t, a.ID(), b.ID())
	assert.Less(t, uint64(a.ID()), uint64(b.ID()))
}

func TestLiteralValue_Equal(t *testing.T) {
	cases := []struct {
		name  string
		a, b  LiteralValue
		equal bool
	}{
		{"numbers equal", NewLiteralNumber(3), NewLiteralNumber(3), true},
		{"numbers differ", NewLiteralNumber(3), NewLiteralNumber(4), false},
		{"nan equals nan", NewLiteralNumber(nan()), NewLiteralNumber(nan()), true},
		{"different kinds", NewLiteralNumber(0), NewLiteralBool(false), false},
		{"strings equal", NewLiteralString("a"), NewLiteralString("a"), true},
		{"null equals null", NewLiteralNull(), NewLiteralNull(), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.equal, tc.a.Equal(tc.b))
		})
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestNodes_WalksNestedExpressions(t *testing.T) {
	f := NewFactory()
	one := f.Literal(Position{}, NewLiteralNumber(1))
	two := f.Literal(Position{}, NewLiteralNumber(2))
	sum := f.Binary(Position{}, OpAdd, one, two)
	ret := f.Return(Position{}, sum)
	body := f.Block(Position{}, []Stmt{ret})
	fn := f.FunctionDecl(Position{}, "f", nil, body)

	nodes := Nodes(&Program{Functions: []*FunctionDecl{fn}})

	for _, id := range []NodeID{fn.ID(), body.ID(), ret.ID(), sum.ID(), one.ID(), two.ID()} {
		_, ok := nodes[id]
		assert.True(t, ok, "expected node %d to be reachable", id)
	}
}

func TestPrint_RoundTripsSimpleFunction(t *testing.T) {
	f := NewFactory()
	lit := f.Literal(Position{}, NewLiteralNumber(3))
	ret := f.Return(Position{}, lit)
	body := f.Block(Position{}, []Stmt{ret})
	fn := f.FunctionDecl(Position{}, "use", []string{"x"}, body)

	out := Print(&Program{Functions: []*FunctionDecl{fn}})
	assert.Contains(t, out, "function use(x)")
	assert.Contains(t, out, "return 3;")
}
