package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/h2non/filetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	StoryWidth  = 1080
	StoryHeight = 1920
	PostSize    = 1080
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// Canvas is the target frame of a rendered image.
type Canvas string

const (
	CanvasPost  Canvas = "post"
	CanvasStory Canvas = "story"
)

func (c Canvas) Size() (int, int) {
	if c == CanvasStory {
		return StoryWidth, StoryHeight
	}
	return PostSize, PostSize
}

// Decode checks the magic bytes before handing data to the image decoders.
func Decode(data []byte) (image.Image, error) {
	if !filetype.IsImage(data) {
		return nil, ErrUnsupportedImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsStoryCanvas reports whether img already has the story frame size.
func IsStoryCanvas(img image.Image) bool {
	b := img.Bounds()
	return b.Dx() == StoryWidth && b.Dy() == StoryHeight
}

// Fit scales src to fit inside a w x h frame filled with bg, centered and never cropped.
func Fit(src image.Image, w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return dst
	}

	scale := min(float64(w)/float64(sb.Dx()), float64(h)/float64(sb.Dy()))
	tw := max(1, int(float64(sb.Dx())*scale+0.5))
	th := max(1, int(float64(sb.Dy())*scale+0.5))
	x0 := (w - tw) / 2
	y0 := (h - th) / 2

	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+tw, y0+th), src, sb, draw.Over, nil)
	return dst
}

// FitStoryCanvas places src on a 1080x1920 black frame.
func FitStoryCanvas(src image.Image) *image.RGBA {
	return Fit(src, StoryWidth, StoryHeight, color.Black)
}
