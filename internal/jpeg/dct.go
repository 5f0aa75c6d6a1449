package jpeg

import "math"

// block is one 8x8 block of coefficients or samples in natural order.
type block [64]int32

var (
	// cosTable[x][u] = C(u)/2 * cos((2x+1)u*pi/16)
	cosTable [8][8]float64
)

func init() {
	for x := 0; x < 8; x++ {
		for u := 0; u < 8; u++ {
			c := 1.0
			if u == 0 {
				c = 1 / math.Sqrt2
			}
			cosTable[x][u] = c / 2 * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16)
		}
	}
}

// fdct transforms level-shifted samples into quantized coefficients.
func fdct(samples *[64]float64, q *QuantTable, out *block) {
	var tmp [64]float64
	// Rows.
	for y := 0; y < 8; y++ {
		for u := 0; u < 8; u++ {
			s := 0.0
			for x := 0; x < 8; x++ {
				s += samples[y*8+x] * cosTable[x][u]
			}
			tmp[y*8+u] = s
		}
	}
	// Columns.
	for u := 0; u < 8; u++ {
		for v := 0; v < 8; v++ {
			s := 0.0
			for y := 0; y < 8; y++ {
				s += tmp[y*8+u] * cosTable[y][v]
			}
			out[v*8+u] = int32(math.Round(s / float64(q[v*8+u])))
		}
	}
}

// idct dequantizes coefficients and returns level-shifted, clamped samples.
func idct(in *block, q *QuantTable, out *[64]uint8) {
	var coef, tmp [64]float64
	for i := range in {
		coef[i] = float64(in[i]) * float64(q[i])
	}
	// Columns.
	for u := 0; u < 8; u++ {
		for y := 0; y < 8; y++ {
			s := 0.0
			for v := 0; v < 8; v++ {
				s += coef[v*8+u] * cosTable[y][v]
			}
			tmp[y*8+u] = s
		}
	}
	// Rows.
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			s := 0.0
			for u := 0; u < 8; u++ {
				s += tmp[y*8+u] * cosTable[x][u]
			}
			out[y*8+x] = clamp8(math.Round(s + 128))
		}
	}
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
