package slidereview

import (
	"errors"
	"strings"
)

// Shape is a placeable element on a slide. It is a closed set: the only
// implementations are *ImageShape and *TextShape, decided when the slide is
// read.
type Shape interface {
	Kind() ShapeKind
	GetName() string
	GetOffsetX() int64
	GetOffsetY() int64
	// HasPosition reports whether the shape carries an offset, either its own
	// or one inherited from a layout placeholder.
	HasPosition() bool
	// base returns the underlying BaseShape and seals the interface.
	base() *BaseShape
}

// ShapeKind identifies the variant of a Shape.
type ShapeKind int

const (
	ShapeKindImage ShapeKind = iota
	ShapeKindText
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeKindImage:
		return "image"
	case ShapeKindText:
		return "text"
	default:
		return "unknown"
	}
}

// errNoPosition is reported for a shape that has neither an own nor an
// inherited offset.
var errNoPosition = errors.New("shape has no position")

// BaseShape contains the placement common to both shape kinds.
type BaseShape struct {
	name       string
	offsetX    int64 // in EMU
	offsetY    int64 // in EMU
	width      int64 // in EMU
	height     int64 // in EMU
	positioned bool
	sized      bool
}

func (b *BaseShape) GetName() string   { return b.name }
func (b *BaseShape) GetOffsetX() int64 { return b.offsetX }
func (b *BaseShape) GetOffsetY() int64 { return b.offsetY }
func (b *BaseShape) GetWidth() int64   { return b.width }
func (b *BaseShape) GetHeight() int64  { return b.height }
func (b *BaseShape) HasPosition() bool { return b.positioned }
func (b *BaseShape) HasSize() bool     { return b.sized }
func (b *BaseShape) base() *BaseShape  { return b }

// SetName sets the shape name.
func (b *BaseShape) SetName(n string) *BaseShape { b.name = n; return b }

// SetPosition sets both offset X and Y in EMU.
func (b *BaseShape) SetPosition(x, y int64) *BaseShape {
	b.offsetX = x
	b.offsetY = y
	b.positioned = true
	return b
}

// SetSize sets both width and height in EMU.
func (b *BaseShape) SetSize(w, h int64) *BaseShape {
	b.width = w
	b.height = h
	b.sized = true
	return b
}

// ImageShape is a picture: an undecoded image payload placed in a rectangle.
type ImageShape struct {
	BaseShape
	data     []byte
	partName string
	loadErr  error
}

func (s *ImageShape) Kind() ShapeKind { return ShapeKindImage }

// Data returns the raw, undecoded image bytes.
func (s *ImageShape) Data() []byte { return s.data }

// PartName returns the package part the payload was read from, if any.
func (s *ImageShape) PartName() string { return s.partName }

// LoadError returns the error encountered while resolving the payload from
// the package, or nil.
func (s *ImageShape) LoadError() error { return s.loadErr }

// TextShape is a block of plain text drawn from a single origin.
type TextShape struct {
	BaseShape
	paragraphs []Paragraph
}

func (s *TextShape) Kind() ShapeKind { return ShapeKindText }

// Paragraph is an ordered list of text runs.
type Paragraph struct {
	runs []string
}

// Runs returns the run strings of the paragraph.
func (p Paragraph) Runs() []string { return p.runs }

// Text returns the runs joined without separator.
func (p Paragraph) Text() string { return strings.Join(p.runs, "") }

// AddParagraph appends a paragraph made of the given runs.
func (s *TextShape) AddParagraph(runs ...string) *TextShape {
	s.paragraphs = append(s.paragraphs, Paragraph{runs: runs})
	return s
}

// Paragraphs returns the paragraphs of the shape.
func (s *TextShape) Paragraphs() []Paragraph { return s.paragraphs }

// Text returns every paragraph that has non-whitespace content, each
// followed by a newline. It is empty when the shape has nothing to draw.
func (s *TextShape) Text() string {
	var sb strings.Builder
	for _, p := range s.paragraphs {
		t := p.Text()
		if strings.TrimSpace(t) == "" {
			continue
		}
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// IsBlank reports whether the shape contributes nothing to the raster.
func (s *TextShape) IsBlank() bool {
	return strings.TrimSpace(s.Text()) == ""
}
