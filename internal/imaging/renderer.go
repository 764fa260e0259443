package imaging

// PNGRenderer renders encoded background bytes and returns PNG bytes.
type PNGRenderer struct{}

func (PNGRenderer) Render(background []byte, text, signature, style string, canvas Canvas) ([]byte, error) {
	bg, err := Decode(background)
	if err != nil {
		return nil, err
	}
	img, err := Render(bg, text, signature, style, canvas)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}
