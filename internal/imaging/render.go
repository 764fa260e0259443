package imaging

import (
	"image"
	"image/color"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	maxLines      = 6
	minFontSize   = 28
	safeInsetPct  = 0.06
	DefaultSigned = "ince düşlerim"
)

type Theme struct {
	Text          color.RGBA
	Signature     color.RGBA
	Shadow        color.RGBA
	Overlay       color.RGBA
	MainSize      float64
	SignatureSize float64
}

var themes = map[string]Theme{
	"minimal_dark": {
		Text:          color.RGBA{255, 255, 255, 255},
		Signature:     color.RGBA{200, 200, 200, 255},
		Shadow:        color.RGBA{0, 0, 0, 255},
		Overlay:       color.RGBA{0, 0, 0, 150},
		MainSize:      108,
		SignatureSize: 54,
	},
	"pastel_soft": {
		Text:          color.RGBA{80, 70, 90, 255},
		Signature:     color.RGBA{120, 110, 130, 255},
		Shadow:        color.RGBA{255, 255, 255, 255},
		Overlay:       color.RGBA{255, 255, 255, 180},
		MainSize:      104,
		SignatureSize: 52,
	},
	"neon_city": {
		Text:          color.RGBA{0, 255, 255, 255},
		Signature:     color.RGBA{255, 100, 255, 255},
		Shadow:        color.RGBA{0, 0, 20, 255},
		Overlay:       color.RGBA{0, 0, 0, 120},
		MainSize:      110,
		SignatureSize: 56,
	},
}

// ThemeFor falls back to minimal_dark for unknown style names.
func ThemeFor(style string) Theme {
	if t, ok := themes[style]; ok {
		return t
	}
	return themes["minimal_dark"]
}

var hashtagPattern = regexp.MustCompile(`\s*#\S+`)

// StripHashtags removes #tags so only the main text is drawn.
func StripHashtags(text string) string {
	return strings.TrimSpace(hashtagPattern.ReplaceAllString(text, ""))
}

var (
	fontOnce sync.Once
	fontErr  error
	regular  *opentype.Font
)

func loadFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		regular, fontErr = opentype.Parse(goregular.TTF)
	})
	return regular, fontErr
}

func newFace(size float64) (font.Face, error) {
	f, err := loadFont()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// Render draws text centered on bg, framed to canvas, with the signature near the bottom.
func Render(bg image.Image, text, signature, style string, canvas Canvas) (*image.RGBA, error) {
	theme := ThemeFor(style)
	w, h := canvas.Size()
	dst := cover(bg, w, h)

	text = StripHashtags(text)
	if signature == "" {
		signature = DefaultSigned
	}

	inset := int(float64(w) * safeInsetPct)
	maxWidth := w - 2*inset
	maxHeight := int(float64(h) * 0.6)

	face, lines, err := fitText(text, theme.MainSize, maxWidth, maxHeight)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	metrics := face.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Ceil() + 8
	blockHeight := lineHeight * len(lines)

	centerY := h / 2
	if canvas == CanvasStory {
		centerY = int(float64(h) * 0.45)
	}
	top := centerY - blockHeight/2

	if len(lines) > 0 {
		pad := 32
		box := image.Rect(inset-pad/2, top-pad, w-inset+pad/2, top+blockHeight+pad)
		draw.Draw(dst, box, &image.Uniform{C: theme.Overlay}, image.Point{}, draw.Over)
	}

	d := &font.Drawer{Dst: dst, Face: face}
	for i, line := range lines {
		y := top + i*lineHeight + metrics.Ascent.Ceil()
		x := (w - d.MeasureString(line).Ceil()) / 2
		drawShadowed(d, line, x, y, theme.Text, theme.Shadow)
	}

	sigFace, err := newFace(theme.SignatureSize)
	if err != nil {
		return nil, err
	}
	defer sigFace.Close()

	sd := &font.Drawer{Dst: dst, Face: sigFace}
	sx := (w - sd.MeasureString(signature).Ceil()) / 2
	sy := h - int(float64(h)*0.08)
	drawShadowed(sd, signature, sx, sy, theme.Signature, theme.Shadow)

	return dst, nil
}

func drawShadowed(d *font.Drawer, s string, x, y int, fg, shadow color.RGBA) {
	d.Src = image.NewUniform(shadow)
	d.Dot = fixed.P(x+2, y+2)
	d.DrawString(s)

	d.Src = image.NewUniform(fg)
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// fitText shrinks the font until the wrapped text fits within the box and line cap.
func fitText(text string, preferred float64, maxWidth, maxHeight int) (font.Face, []string, error) {
	for size := preferred; ; size -= 4 {
		if size < minFontSize {
			size = minFontSize
		}
		face, err := newFace(size)
		if err != nil {
			return nil, nil, err
		}

		lines := wrap(face, text, maxWidth)
		m := face.Metrics()
		height := ((m.Ascent + m.Descent).Ceil() + 8) * len(lines)
		if (len(lines) <= maxLines && height <= maxHeight) || size == minFontSize {
			if len(lines) > maxLines {
				lines = lines[:maxLines]
				lines[maxLines-1] = strings.TrimRight(lines[maxLines-1], " .,") + "..."
			}
			return face, lines, nil
		}
		face.Close()
	}
}

func wrap(face font.Face, text string, maxWidth int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, word := range words[1:] {
			candidate := line + " " + word
			if font.MeasureString(face, candidate).Ceil() <= maxWidth {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = word
		}
		lines = append(lines, line)
	}
	return lines
}

// cover scales bg to fill the frame, cropping the overflow around the center.
func cover(bg image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	if bg == nil {
		return dst
	}

	sb := bg.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return dst
	}

	scale := max(float64(w)/float64(sb.Dx()), float64(h)/float64(sb.Dy()))
	cw := int(float64(w) / scale)
	ch := int(float64(h) / scale)
	x0 := sb.Min.X + (sb.Dx()-cw)/2
	y0 := sb.Min.Y + (sb.Dy()-ch)/2

	draw.CatmullRom.Scale(dst, dst.Bounds(), bg, image.Rect(x0, y0, x0+cw, y0+ch), draw.Over, nil)
	return dst
}
