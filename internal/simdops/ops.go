// Package simdops binds the float32 kernels used by the stretch engine to
// github.com/tphakala/simd, so stage code stays independent of the CPU
// feature set the process happens to run on.
package simdops

import (
	"github.com/tphakala/simd/cpu"
	"github.com/tphakala/simd/f32"
)

// Kernels is a table of SIMD-dispatched float32 operations.
//
// All slices passed to a kernel must already be sized by the caller; no
// kernel allocates.
type Kernels struct {
	// Dot computes Σ a[i]·b[i] over len(a) elements. len(b) must be ≥ len(a).
	Dot func(a, b []float32) float32

	// ConvolveValid writes the valid part of signal ⋆ kernel into dst,
	// len(dst) == len(signal) − len(kernel) + 1.
	ConvolveValid func(dst, signal, kernel []float32)

	// Interleave2 writes dst[2i] = a[i], dst[2i+1] = b[i].
	Interleave2 func(dst, a, b []float32)

	// Scale writes dst[i] = a[i]·s.
	Scale func(dst, a []float32, s float32)

	// Sum returns Σ a[i].
	Sum func(a []float32) float32
}

var float32Kernels = Kernels{
	Dot:           f32.DotProductUnsafe,
	ConvolveValid: f32.ConvolveValid,
	Interleave2:   f32.Interleave2,
	Scale:         f32.Scale,
	Sum:           f32.Sum,
}

// Float32 returns the shared float32 kernel table.
func Float32() *Kernels {
	return &float32Kernels
}

// Info describes the instruction set selected at startup.
func Info() string {
	return cpu.Info()
}
