// SPDX-License-Identifier: MIT
/*
Package bitint provides power-of-two helpers for buffer and FFT sizing.

All operations are O(1), allocation-free and safe on the real-time path.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
// Powers of 2 are returned unchanged; zero and negative inputs return 1.
// The size-1 subtraction keeps exact powers of 2 from being doubled.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}

	// 64-bit platforms (where int is 64-bit)
	if ^uint(0)>>63 == 0 {
		return int(1 << (bits.Len64(uint64(size - 1))))
	}

	// 32-bit platforms
	return int(1 << (bits.Len32(uint32(size - 1))))
}

// NextPowerOfTwo32 is NextPowerOfTwo for int32 values.
func NextPowerOfTwo32(size int32) int32 {
	if size <= 0 {
		return 1
	}
	return int32(1 << (bits.Len32(uint32(size - 1))))
}

// NextPowerOfTwo64 is NextPowerOfTwo for int64 values.
func NextPowerOfTwo64(size int64) int64 {
	if size <= 0 {
		return 1
	}
	return int64(1 << (bits.Len64(uint64(size - 1))))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// (n & (n-1)) == 0 holds exactly when a single bit is set.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// IsPowerOfTwo32 is IsPowerOfTwo for int32 values.
func IsPowerOfTwo32(n int32) bool {
	return n > 0 && (n&(n-1)) == 0
}

// IsPowerOfTwo64 is IsPowerOfTwo for int64 values.
func IsPowerOfTwo64(n int64) bool {
	return n > 0 && (n&(n-1)) == 0
}
