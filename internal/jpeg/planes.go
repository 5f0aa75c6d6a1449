package jpeg

import (
	"fmt"

	"mediakit/internal/mediaerr"
)

// Subsampling names the component sampling of a frame.
type Subsampling int

const (
	S444 Subsampling = iota
	S422
	S420
	Gray
)

func (s Subsampling) String() string {
	switch s {
	case S444:
		return "4:4:4"
	case S422:
		return "4:2:2"
	case S420:
		return "4:2:0"
	case Gray:
		return "gray"
	}
	return fmt.Sprintf("Subsampling(%d)", int(s))
}

// ParseSubsampling maps a configuration string to a Subsampling.
func ParseSubsampling(s string) (Subsampling, error) {
	switch s {
	case "4:4:4", "444":
		return S444, nil
	case "", "4:2:2", "422":
		return S422, nil
	case "4:2:0", "420":
		return S420, nil
	case "gray", "grey":
		return Gray, nil
	}
	return S422, fmt.Errorf("unknown subsampling %q", s)
}

// factors returns the luma sampling factors; chroma is always 1x1.
func (s Subsampling) factors() (h, v int) {
	switch s {
	case S422:
		return 2, 1
	case S420:
		return 2, 2
	}
	return 1, 1
}

// Plane is one component at its own resolution. Stride equals Width.
type Plane struct {
	Pix           []byte
	Width, Height int
	// H and V are the component's sampling factors.
	H, V int
}

// Planes is a planar image: one plane for grayscale, Y Cb Cr otherwise.
type Planes struct {
	Width, Height int
	Comps         []Plane
}

// NewPlanes allocates planes for a width x height frame.
func NewPlanes(width, height int, sub Subsampling) *Planes {
	p := &Planes{Width: width, Height: height}
	h, v := sub.factors()
	p.Comps = append(p.Comps, Plane{Pix: make([]byte, width*height), Width: width, Height: height, H: h, V: v})
	if sub == Gray {
		return p
	}
	cw, ch := (width+h-1)/h, (height+v-1)/v
	for i := 0; i < 2; i++ {
		p.Comps = append(p.Comps, Plane{Pix: make([]byte, cw*ch), Width: cw, Height: ch, H: 1, V: 1})
	}
	return p
}

// Subsampling reports the layout of p, or false when it is not one of the
// named layouts.
func (p *Planes) Subsampling() (Subsampling, bool) {
	if len(p.Comps) == 1 {
		return Gray, true
	}
	if len(p.Comps) != 3 || p.Comps[1].H != 1 || p.Comps[1].V != 1 || p.Comps[2].H != 1 || p.Comps[2].V != 1 {
		return 0, false
	}
	switch [2]int{p.Comps[0].H, p.Comps[0].V} {
	case [2]int{1, 1}:
		return S444, true
	case [2]int{2, 1}:
		return S422, true
	case [2]int{2, 2}:
		return S420, true
	}
	return 0, false
}

func (p *Planes) maxFactors() (hmax, vmax int) {
	hmax, vmax = 1, 1
	for _, c := range p.Comps {
		if c.H > hmax {
			hmax = c.H
		}
		if c.V > vmax {
			vmax = c.V
		}
	}
	return hmax, vmax
}

// at returns component c's sample covering full-resolution pixel (x, y).
func (p *Planes) at(c, x, y int) byte {
	pl := &p.Comps[c]
	hmax, vmax := p.maxFactors()
	cx := x * pl.H / hmax
	cy := y * pl.V / vmax
	if cx >= pl.Width {
		cx = pl.Width - 1
	}
	if cy >= pl.Height {
		cy = pl.Height - 1
	}
	return pl.Pix[cy*pl.Width+cx]
}

func clampInt(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// FromRGB converts interleaved 8-bit RGB to planes using the JFIF (full
// range BT.601) transform. Chroma is averaged over each subsampled block.
func FromRGB(rgb []byte, width, height int, sub Subsampling) (*Planes, error) {
	if len(rgb) < width*height*3 {
		return nil, mediaerr.E(mediaerr.KindResource, "jpeg.FromRGB",
			fmt.Errorf("%d bytes for %dx%d RGB: %w", len(rgb), width, height, mediaerr.ErrBufferTooSmall))
	}
	p := NewPlanes(width, height, sub)
	var cb, cr []int32
	if sub != Gray {
		cb = make([]int32, width*height)
		cr = make([]int32, width*height)
	}
	for i := 0; i < width*height; i++ {
		r, g, b := int32(rgb[3*i]), int32(rgb[3*i+1]), int32(rgb[3*i+2])
		y := (19595*r + 38470*g + 7471*b + 1<<15) >> 16
		p.Comps[0].Pix[i] = byte(y)
		if sub != Gray {
			cb[i] = (-11056*r - 21712*g + 32768*b + 257<<15) >> 16
			cr[i] = (32768*r - 27440*g - 5328*b + 257<<15) >> 16
		}
	}
	if sub == Gray {
		return p, nil
	}
	h, v := sub.factors()
	for c, full := range [][]int32{cb, cr} {
		pl := &p.Comps[c+1]
		for cy := 0; cy < pl.Height; cy++ {
			for cx := 0; cx < pl.Width; cx++ {
				sum, n := int32(0), int32(0)
				for dy := 0; dy < v; dy++ {
					for dx := 0; dx < h; dx++ {
						x, y := cx*h+dx, cy*v+dy
						if x < width && y < height {
							sum += full[y*width+x]
							n++
						}
					}
				}
				pl.Pix[cy*pl.Width+cx] = clampInt(int((sum + n/2) / n))
			}
		}
	}
	return p, nil
}

// RGB converts planes to interleaved 8-bit RGB.
func (p *Planes) RGB() []byte {
	out := make([]byte, p.Width*p.Height*3)
	gray := len(p.Comps) == 1
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			o := 3 * (y*p.Width + x)
			yy := int32(p.at(0, x, y))
			if gray {
				out[o], out[o+1], out[o+2] = byte(yy), byte(yy), byte(yy)
				continue
			}
			cb := int32(p.at(1, x, y)) - 128
			cr := int32(p.at(2, x, y)) - 128
			y1 := yy<<16 + 1<<15
			out[o] = clampInt(int((y1 + 91881*cr) >> 16))
			out[o+1] = clampInt(int((y1 - 22554*cb - 46802*cr) >> 16))
			out[o+2] = clampInt(int((y1 + 116130*cb) >> 16))
		}
	}
	return out
}

// FromUYVY splits interleaved 4:2:2 U Y V Y samples into 4:2:2 planes.
func FromUYVY(uyvy []byte, width, height int) (*Planes, error) {
	if width%2 != 0 {
		return nil, mediaerr.Errorf(mediaerr.KindUnsupported, "jpeg.FromUYVY", "odd width %d", width)
	}
	if len(uyvy) < width*height*2 {
		return nil, mediaerr.E(mediaerr.KindResource, "jpeg.FromUYVY",
			fmt.Errorf("%d bytes for %dx%d UYVY: %w", len(uyvy), width, height, mediaerr.ErrBufferTooSmall))
	}
	p := NewPlanes(width, height, S422)
	cw := width / 2
	for y := 0; y < height; y++ {
		for x := 0; x < cw; x++ {
			s := uyvy[2*(y*width)+4*x:]
			p.Comps[1].Pix[y*cw+x] = s[0]
			p.Comps[0].Pix[y*width+2*x] = s[1]
			p.Comps[2].Pix[y*cw+x] = s[2]
			p.Comps[0].Pix[y*width+2*x+1] = s[3]
		}
	}
	return p, nil
}

// UYVY interleaves planes into 4:2:2 U Y V Y. Chroma is point-sampled from
// whatever sampling p has. An odd last column is dropped.
func (p *Planes) UYVY() []byte {
	out := make([]byte, p.Width*p.Height*2)
	gray := len(p.Comps) == 1
	for y := 0; y < p.Height; y++ {
		for x := 0; x+1 < p.Width; x += 2 {
			o := 2 * (y*p.Width + x)
			u, v := byte(128), byte(128)
			if !gray {
				u, v = p.at(1, x, y), p.at(2, x, y)
			}
			out[o] = u
			out[o+1] = p.at(0, x, y)
			out[o+2] = v
			out[o+3] = p.at(0, x+1, y)
		}
	}
	return out
}

// Remap passes every luma sample through luma and every chroma sample
// through chroma.
func (p *Planes) Remap(luma, chroma *[256]byte) {
	for c := range p.Comps {
		lut := chroma
		if c == 0 {
			lut = luma
		}
		for i, v := range p.Comps[c].Pix {
			p.Comps[c].Pix[i] = lut[v]
		}
	}
}

// SplitFields separates an interlaced frame into its even-line and odd-line
// fields.
func (p *Planes) SplitFields() (even, odd *Planes) {
	even = &Planes{Width: p.Width, Height: (p.Height + 1) / 2}
	odd = &Planes{Width: p.Width, Height: p.Height / 2}
	for _, c := range p.Comps {
		for f, dst := range []*Planes{even, odd} {
			rows := (c.Height + 1 - f) / 2
			pl := Plane{Pix: make([]byte, c.Width*rows), Width: c.Width, Height: rows, H: c.H, V: c.V}
			for r := 0; r < rows; r++ {
				src := (2*r + f) * c.Width
				copy(pl.Pix[r*c.Width:(r+1)*c.Width], c.Pix[src:src+c.Width])
			}
			dst.Comps = append(dst.Comps, pl)
		}
	}
	return even, odd
}

// JoinFields interleaves two fields into one frame, even lines from even.
func JoinFields(even, odd *Planes) (*Planes, error) {
	if len(even.Comps) != len(odd.Comps) || even.Width != odd.Width {
		return nil, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.JoinFields",
			"fields differ: %dx%d/%d vs %dx%d/%d", even.Width, even.Height, len(even.Comps), odd.Width, odd.Height, len(odd.Comps))
	}
	out := &Planes{Width: even.Width, Height: even.Height + odd.Height}
	for i := range even.Comps {
		a, b := even.Comps[i], odd.Comps[i]
		if a.Width != b.Width {
			return nil, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.JoinFields", "component %d widths differ", i)
		}
		pl := Plane{Pix: make([]byte, a.Width*(a.Height+b.Height)), Width: a.Width, Height: a.Height + b.Height, H: a.H, V: a.V}
		for r := 0; r < pl.Height; r++ {
			src := a
			if r%2 == 1 {
				src = b
			}
			if r/2 >= src.Height {
				break
			}
			copy(pl.Pix[r*a.Width:(r+1)*a.Width], src.Pix[(r/2)*a.Width:])
		}
		out.Comps = append(out.Comps, pl)
	}
	return out, nil
}
