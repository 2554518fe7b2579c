package proofs

// EvaluatePolynomial returns x^3 + a*x + b with every operation wrapping at 2^32.
func EvaluatePolynomial(x, a, b uint32) uint32 {
	y := x * x * x
	y += x * a
	y += b
	return y
}

// PolynomialClaim holds the public parameters x and a and the private witness b.
type PolynomialClaim struct {
	X uint32
	A uint32
	B uint32
}

// Evaluate computes the claim. The witness b never reaches the output.
func (c PolynomialClaim) Evaluate() PolynomialValues {
	return PolynomialValues{X: c.X, A: c.A, Y: EvaluatePolynomial(c.X, c.A, c.B)}
}
