// Package extractor defines the frozen feature-extractor boundary and its
// ONNX Runtime implementation. The extractor is an opaque function from a
// normalized image tensor to one embedding vector per patch; any model
// honoring the shape contract is interchangeable.
package extractor

// Extractor maps a normalized [1,3,height,width] image tensor (flattened
// row-major) to (height/P)*(width/P) embedding vectors of length Dim, in
// row-major patch order.
type Extractor interface {
	Dim() int
	Embed(input []float32, height, width int) ([][]float32, error)
}
