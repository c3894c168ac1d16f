package gpu

// Float64ToFloat32 converts a slice of float64 to float32
func Float64ToFloat32(input []float64) []float32 {
	output := make([]float32, len(input))
	for i, v := range input {
		output[i] = float32(v)
	}
	return output
}

// StridedToFloat64 gathers a rows x cols matrix stored with leading dimension
// ld into a dense row-major float64 slice.
func StridedToFloat64(array []float32, offset, ld, rows, cols int) []float64 {
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		base := offset + i*ld
		for j := 0; j < cols; j++ {
			out = append(out, float64(array[base+j]))
		}
	}
	return out
}
