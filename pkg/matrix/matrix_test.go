package matrix

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveDivider(t *testing.T) {
	// 10V source at node 1, 1k from 1 to 2, 1k from 2 to ground.
	// Unknowns: V1, V2, I(V).
	m, err := NewMatrix(3, nil)
	require.NoError(t, err)
	defer m.Destroy()
	m.SetupElements()

	g := 1e-3
	m.AddElement(1, 1, g)
	m.AddElement(1, 2, -g)
	m.AddElement(2, 1, -g)
	m.AddElement(2, 2, 2*g)
	m.AddElement(1, 3, 1)
	m.AddElement(3, 1, 1)
	m.AddRHS(3, 10)

	require.NoError(t, m.Solve())
	x := m.Solution()
	assert.InDelta(t, 10, x[1], 1e-9)
	assert.InDelta(t, 5, x[2], 1e-9)
	assert.InDelta(t, -5e-3, x[3], 1e-12)
}

func TestOutOfBoundsIgnored(t *testing.T) {
	m, err := NewMatrix(1, nil)
	require.NoError(t, err)
	defer m.Destroy()
	m.SetupElements()

	m.AddElement(0, 1, 5)
	m.AddElement(2, 2, 5)
	m.AddRHS(3, 1)
	m.AddElement(1, 1, 2)
	m.AddRHS(1, 4)

	require.NoError(t, m.Solve())
	assert.InDelta(t, 2, m.Solution()[1], 1e-12)
}

func TestPrintSystem(t *testing.T) {
	m, err := NewMatrix(2, nil)
	require.NoError(t, err)
	defer m.Destroy()

	m.AddElement(1, 1, 2)
	m.AddElement(2, 2, 4)
	m.AddRHS(2, 1)

	var buf bytes.Buffer
	m.PrintSystem(&buf, []string{"V[a]"})
	out := buf.String()
	assert.Contains(t, out, "+2*V[a]")
	assert.Contains(t, out, "+4*x2 = 1")
}
