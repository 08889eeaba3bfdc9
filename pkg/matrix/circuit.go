package matrix

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/edp1096/sparse"
)

// CircuitMatrix is a real sparse linear system with 1-based indexing, as the
// sparse package uses. Row and column i correspond to unknown i-1.
type CircuitMatrix struct {
	Size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
	logger   *slog.Logger
}

var _ Matrix = (*CircuitMatrix)(nil)

func NewMatrix(size int, logger *slog.Logger) (*CircuitMatrix, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config := &sparse.Configuration{
		Real:           true,
		Complex:        false,
		Expandable:     true,
		Translate:      false,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
		Annotate:       0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %w", err)
	}

	return &CircuitMatrix{
		Size:     size,
		matrix:   mat,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
		logger:   logger,
	}, nil
}

func (m *CircuitMatrix) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		m.logger.Warn("Matrix index out of bounds", "i", i, "j", j, "size", m.Size)
		return
	}
	m.matrix.GetElement(int64(i), int64(j)).Real += value
}

func (m *CircuitMatrix) AddRHS(i int, value float64) {
	if i <= 0 || i > m.Size {
		m.logger.Warn("RHS index out of bounds", "i", i, "size", m.Size)
		return
	}
	m.rhs[i] += value
}

// SetupElements creates every element up front so the first factorization
// orders a structurally complete matrix.
func (m *CircuitMatrix) SetupElements() {
	for i := 1; i <= m.Size; i++ {
		for j := 1; j <= m.Size; j++ {
			m.matrix.GetElement(int64(i), int64(j))
		}
	}
}

func (m *CircuitMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
}

func (m *CircuitMatrix) Solve() error {
	if err := m.matrix.Factor(); err != nil {
		return fmt.Errorf("matrix factorization failed: %w", err)
	}

	solution, err := m.matrix.Solve(m.rhs)
	if err != nil {
		return fmt.Errorf("matrix solve failed: %w", err)
	}
	m.solution = solution
	return nil
}

func (m *CircuitMatrix) RHS() []float64 { return m.rhs }

// Solution returns the last solution, 1-based.
func (m *CircuitMatrix) Solution() []float64 { return m.solution }

// PrintSystem writes the nonzero entries of each row and the right-hand side.
// It must be called before Solve, which overwrites the matrix with its LU
// factors.
func (m *CircuitMatrix) PrintSystem(w io.Writer, labels []string) {
	label := func(j int) string {
		if j-1 < len(labels) {
			return labels[j-1]
		}
		return fmt.Sprintf("x%d", j)
	}

	fmt.Fprintf(w, "Circuit Equations (%dx%d):\n", m.Size, m.Size)
	for i := 1; i <= m.Size; i++ {
		fmt.Fprintf(w, "%-12s", label(i)+":")
		for j := 1; j <= m.Size; j++ {
			if v := m.matrix.GetElement(int64(i), int64(j)).Real; v != 0 {
				fmt.Fprintf(w, "  %+g*%s", v, label(j))
			}
		}
		fmt.Fprintf(w, " = %g\n", m.rhs[i])
	}
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
		m.matrix = nil
	}
}
