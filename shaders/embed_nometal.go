//go:build !metal || !darwin
// +build !metal !darwin

package shaders

func metalLib() []byte {
	return nil
}
