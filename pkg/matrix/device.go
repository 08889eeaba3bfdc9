package matrix

// Matrix is the write side of a linear system. Indices are 1-based.
type Matrix interface {
	AddElement(i, j int, value float64)
	AddRHS(i int, value float64)
}
