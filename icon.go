package xpanel

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// Icon is one ARGB image of a multi-resolution _NET_WM_ICON property.
type Icon struct {
	Width  int
	Height int
	ARGB   []uint32
}

// NewIconsFromCardinals parses the _NET_WM_ICON property.
//
// Format of the property is a sequence of
//
//	<width>, <height>, <width*height ARGB pixels>
//
// Parsing stops at the first entry that is truncated or has a zero size; the icons read so far are returned.
func NewIconsFromCardinals(data []uint32) ([]*Icon, error) {
	var icons []*Icon

	pos := 0
	for pos+2 < len(data) {
		w, h := uint64(data[pos]), uint64(data[pos+1])
		left := uint64(len(data) - pos - 2)

		// Both factors are below 2^32, so the product cannot overflow.
		if w == 0 || h == 0 || w*h > left {
			break
		}

		n := int(w * h)
		icons = append(icons, &Icon{
			Width:  int(w),
			Height: int(h),
			ARGB:   data[pos+2 : pos+2+n],
		})
		pos += 2 + n
	}

	if len(icons) == 0 {
		return nil, fmt.Errorf("invalid icon data: no complete icon in %d cardinals", len(data))
	}

	return icons, nil
}

// BestIcon returns the icon whose width equals size, or the widest icon.
func BestIcon(icons []*Icon, size int) *Icon {
	var best *Icon
	for _, icon := range icons {
		if icon.Width == size {
			return icon
		}
		if best == nil || icon.Width > best.Width {
			best = icon
		}
	}
	return best
}

// Image converts the icon to a non-premultiplied image.
func (icon *Icon) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, icon.Width, icon.Height))
	for i, argb := range icon.ARGB {
		img.Pix[i*4+0] = uint8(argb >> 16)
		img.Pix[i*4+1] = uint8(argb >> 8)
		img.Pix[i*4+2] = uint8(argb)
		img.Pix[i*4+3] = uint8(argb >> 24)
	}
	return img
}

// DefaultIcon returns the icon used for windows without any icon.
func DefaultIcon(size int) *image.NRGBA {
	if size <= 0 {
		size = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	fg := color.NRGBA{R: 0xbb, G: 0xbb, B: 0xbb, A: 0xff}
	border := size / 8
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x < border || y < border || x >= size-border || y >= size-border {
				img.SetNRGBA(x, y, fg)
			}
		}
	}
	return img
}

// ScaleImage returns src scaled to a size x size square.
func ScaleImage(src image.Image, size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// ScaleToWidth returns src scaled to width, preserving the aspect ratio.
func ScaleToWidth(src image.Image, width int) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || width <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// AdjustImage returns a copy of src with alpha scaled and saturation and
// brightness shifted. Fully transparent pixels are left untouched.
func AdjustImage(src image.Image, adj Adjust) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	if adj.Identity() {
		return dst
	}

	for i := 0; i < len(dst.Pix); i += 4 {
		c := color.NRGBA{R: dst.Pix[i], G: dst.Pix[i+1], B: dst.Pix[i+2], A: dst.Pix[i+3]}
		if c.A == 0 {
			continue
		}
		c = AdjustColor(c, adj)
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
	}

	return dst
}

// AdjustColor applies adj to a single color.
func AdjustColor(c color.NRGBA, adj Adjust) color.NRGBA {
	if adj.Identity() {
		return c
	}

	h, s, v := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hsv()

	s = clamp01(s + float64(adj.Saturation)/100)
	rgb := colorful.Hsv(h, s, v)

	shift := float64(adj.Brightness) / 100
	alpha := math.Round(float64(c.A) * float64(adj.Alpha) / 100)

	return color.NRGBA{
		R: to8(rgb.R + shift),
		G: to8(rgb.G + shift),
		B: to8(rgb.B + shift),
		A: uint8(math.Max(0, math.Min(255, alpha))),
	}
}

// MeanColor returns the average color of the non-transparent pixels of img.
func MeanColor(img image.Image) color.RGBA {
	if img == nil {
		return color.RGBA{}
	}

	var sumR, sumG, sumB, count uint64
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 {
				continue
			}
			sumR += uint64(c.R)
			sumG += uint64(c.G)
			sumB += uint64(c.B)
			count++
		}
	}
	if count == 0 {
		count = 1
	}

	return color.RGBA{
		R: uint8(sumR / count),
		G: uint8(sumG / count),
		B: uint8(sumB / count),
		A: 0xff,
	}
}

func adjustRGBA(c color.RGBA, adj Adjust) color.RGBA {
	n := AdjustColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, adj)
	return color.RGBA{R: n.R, G: n.G, B: n.B, A: n.A}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}
