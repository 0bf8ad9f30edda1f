package slidereview

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/text/unicode/norm"
)

// maxFontFileSize limits the size of font files loaded from disk.
const maxFontFileSize = 50 << 20 // 50 MB

// Built-in typeface names accepted by LoadTypeface in place of a path.
const (
	TypefaceBasic     = "basic"
	TypefaceGoRegular = "goregular"
	TypefaceGoMono    = "gomono"
)

// Typeface is the single font used to draw slide text and comments. A nil
// *Typeface draws with the built-in 7x13 bitmap face.
//
// A Typeface is safe for concurrent use; the faces it returns are not.
type Typeface struct {
	name string
	font *opentype.Font
	size float64
}

// ParseTypeface parses TrueType/OpenType data into a typeface of the given
// point size, rendered at 72 DPI so that one point is one pixel.
func ParseTypeface(name string, data []byte, sizePt float64) (*Typeface, error) {
	if sizePt <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", sizePt)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", name, err)
	}
	return &Typeface{name: name, font: f, size: sizePt}, nil
}

// LoadTypeface loads a typeface by built-in name or from a font file. The
// empty string and "basic" select the built-in bitmap face and return nil.
func LoadTypeface(nameOrPath string, sizePt float64) (*Typeface, error) {
	switch strings.ToLower(nameOrPath) {
	case "", TypefaceBasic:
		return nil, nil
	case TypefaceGoRegular:
		return ParseTypeface(TypefaceGoRegular, goregular.TTF, sizePt)
	case TypefaceGoMono:
		return ParseTypeface(TypefaceGoMono, gomono.TTF, sizePt)
	}

	info, err := os.Stat(nameOrPath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFontFileSize {
		return nil, fmt.Errorf("font file %s exceeds maximum allowed size (%d bytes)", nameOrPath, maxFontFileSize)
	}
	data, err := os.ReadFile(nameOrPath)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return ParseTypeface(nameOrPath, data, sizePt)
}

// Name returns the typeface name, or "basic" for the built-in face.
func (t *Typeface) Name() string {
	if t == nil {
		return TypefaceBasic
	}
	return t.name
}

// NewFace returns a face for one render pass. The caller closes it when
// done. Faces keep glyph buffers and must not be shared between goroutines.
func (t *Typeface) NewFace() (font.Face, error) {
	if t == nil {
		return basicfont.Face7x13, nil
	}
	face, err := opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    t.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face %s: %w", t.name, err)
	}
	return face, nil
}

// normalizeText puts drawn text in NFC form so that decomposed accents map
// onto the precomposed glyphs the faces carry.
func normalizeText(s string) string {
	return norm.NFC.String(s)
}
