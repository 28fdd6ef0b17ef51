package patch

// QuantizeMask reduces a resized mask to one soft label per patch: the
// arithmetic mean of the patchSize*patchSize pixels inside it. The mask
// must be row-major with the grid's pixel dimensions. Labels come back
// row-major over the grid, each in [0,1].
func QuantizeMask(mask []float32, g Grid, patchSize int) []float32 {
	width := g.Cols * patchSize
	inv := 1.0 / float32(patchSize*patchSize)

	labels := make([]float32, g.Patches())
	for pr := 0; pr < g.Rows; pr++ {
		for pc := 0; pc < g.Cols; pc++ {
			var sum float32
			base := pr*patchSize*width + pc*patchSize
			for y := 0; y < patchSize; y++ {
				row := base + y*width
				for x := 0; x < patchSize; x++ {
					sum += mask[row+x]
				}
			}
			labels[pr*g.Cols+pc] = sum * inv
		}
	}
	return labels
}
