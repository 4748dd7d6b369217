// Package fixed renders signed integers and binary fixed-point values as
// decimal text for the serial console.
package fixed

const (
	// Shift is the number of fractional bits in a 24.8 value.
	Shift = 8
	// One is 1.0 in 24.8.
	One = 1 << Shift

	maxDigits   = 10
	maxShift    = 31
	maxDecimals = 9
)

// AppendInt appends the decimal form of n to dst. leadingZeros is the
// minimum number of digits to emit (clamped to 10), which is how fractional
// parts keep their zeros after the decimal point.
func AppendInt(dst []byte, n int32, leadingZeros int) []byte {
	return appendInt64(dst, int64(n), leadingZeros)
}

// FormatInt is AppendInt into a new string.
func FormatInt(n int32, leadingZeros int) string {
	return string(AppendInt(nil, n, leadingZeros))
}

// AppendFixed appends a fixed-point number with shift fractional bits,
// printing decimals digits after the point. The fraction is truncated, not
// rounded. shift is clamped to 31 and decimals to 9.
func AppendFixed(dst []byte, n int32, shift uint, decimals int) []byte {
	if shift > maxShift {
		shift = maxShift
	}
	if decimals > maxDecimals {
		decimals = maxDecimals
	}

	v := int64(n)
	if v < 0 {
		dst = append(dst, '-')
		v = -v
	}

	dst = appendInt64(dst, v>>shift, 0)
	if decimals <= 0 {
		return dst
	}

	scale := int64(1)
	for range decimals {
		scale *= 10
	}
	frac := ((v & (int64(1)<<shift - 1)) * scale) >> shift

	dst = append(dst, '.')
	return appendInt64(dst, frac, decimals)
}

// FormatFixed is AppendFixed into a new string.
func FormatFixed(n int32, shift uint, decimals int) string {
	return string(AppendFixed(nil, n, shift, decimals))
}

// Whole returns the integer part of a 24.8 value.
func Whole(n int32) int32 {
	return n >> Shift
}

// Tenths returns the first fractional decimal digit of a 24.8 value.
func Tenths(n int32) int32 {
	return ((n & (One - 1)) * 10) >> Shift
}

func appendInt64(dst []byte, v int64, leadingZeros int) []byte {
	if leadingZeros > maxDigits {
		leadingZeros = maxDigits
	}
	if leadingZeros < 1 {
		leadingZeros = 1
	}

	var u uint64
	if v < 0 {
		dst = append(dst, '-')
		u = uint64(-v)
	} else {
		u = uint64(v)
	}

	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	for len(buf)-i < leadingZeros {
		i--
		buf[i] = '0'
	}
	return append(dst, buf[i:]...)
}
