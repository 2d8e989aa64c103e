package enrollment

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/okian/facegate/internal/domain/model"
)

const (
	DefaultQuality  = 95
	DefaultMaxWidth = 1024

	MaxPhotoBytes  = 10 << 20
	MinPhotoWidth  = 200
	MinPhotoHeight = 200
)

// Encoder turns frames into submission-ready JPEG bytes.
type Encoder struct {
	Quality  int
	MaxWidth int
}

// NewEncoder returns an encoder, falling back to defaults for values <= 0.
func NewEncoder(quality, maxWidth int) *Encoder {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Encoder{Quality: quality, MaxWidth: maxWidth}
}

// Encode downscales f to MaxWidth if needed and encodes it. It returns the
// JPEG bytes and the encoded dimensions.
func (e *Encoder) Encode(f model.Frame) ([]byte, int, int, error) { //nolint:gocritic // hugeParam: frames are passed by value
	if !f.Valid() {
		return nil, 0, 0, fmt.Errorf("cannot encode frame %d: invalid dimensions %dx%d", f.Seq, f.Width, f.Height)
	}
	return e.EncodeImage(f.Image())
}

// EncodeImage is Encode for an arbitrary image.
func (e *Encoder) EncodeImage(img image.Image) ([]byte, int, int, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var src image.Image = img
	if width > e.MaxWidth {
		newHeight := int(float64(height) * float64(e.MaxWidth) / float64(width))
		resized := image.NewRGBA(image.Rect(0, 0, e.MaxWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		src = resized
		width, height = e.MaxWidth, newHeight
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode photo: %w", err)
	}
	return buf.Bytes(), width, height, nil
}

// Validate applies the service's upload limits locally: at most 10 MB, JPEG or
// PNG, at least 200x200.
func Validate(data []byte) error {
	if len(data) > MaxPhotoBytes {
		return fmt.Errorf("%w: %.2fMB (max %dMB)", ErrPhotoTooLarge, float64(len(data))/(1<<20), MaxPhotoBytes>>20)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPhotoFormat, err)
	}
	if format != "jpeg" && format != "png" {
		return fmt.Errorf("%w: %s", ErrPhotoFormat, format)
	}
	if cfg.Width < MinPhotoWidth || cfg.Height < MinPhotoHeight {
		return fmt.Errorf("%w: %dx%d (min %dx%d)", ErrPhotoTooSmall, cfg.Width, cfg.Height, MinPhotoWidth, MinPhotoHeight)
	}
	return nil
}
