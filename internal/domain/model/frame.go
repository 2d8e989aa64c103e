// Package model contains the value types passed between the capture pipeline
// layers: frames, landmarks, invite codes and the captured photo.
package model

import (
	"image"
	"image/color"
	"time"
)

// BytesPerPixel is the packing of Frame.Pix (R, G, B).
const BytesPerPixel = 3

// Frame is an immutable RGB24 snapshot produced by a frame source.
//
// Pix MUST NOT be modified once the frame has been handed out; detectors and
// the capture step share it by reference.
type Frame struct {
	Pix       []byte
	Width     int
	Height    int
	Seq       uint64
	Timestamp time.Time
}

// Valid reports whether the pixel buffer matches the declared dimensions.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*BytesPerPixel
}

// FrameFromImage packs img into a new RGB24 frame.
func FrameFromImage(img image.Image, seq uint64, ts time.Time) Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 0, w*h*BytesPerPixel)

	// Fast path for the decoders' common outputs.
	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+w*4]
			for x := 0; x < w; x++ {
				pix = append(pix, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yi := src.YOffset(x, y)
				ci := src.COffset(x, y)
				r, g, bb := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				pix = append(pix, r, g, bb)
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bb, _ := img.At(x, y).RGBA()
				pix = append(pix, byte(r>>8), byte(g>>8), byte(bb>>8))
			}
		}
	}

	return Frame{Pix: pix, Width: w, Height: h, Seq: seq, Timestamp: ts}
}

// Image expands the frame into an opaque RGBA image for encoding.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if !f.Valid() {
		return img
	}
	for i, j := 0, 0; i < len(f.Pix); i, j = i+BytesPerPixel, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// SolidFrame returns a frame filled with one color. Used by synthetic sources.
func SolidFrame(width, height int, r, g, b byte, seq uint64) Frame {
	pix := make([]byte, width*height*BytesPerPixel)
	for i := 0; i < len(pix); i += BytesPerPixel {
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}
	return Frame{Pix: pix, Width: width, Height: height, Seq: seq, Timestamp: time.Now()}
}
