// Package slidereview converts PowerPoint presentations (.pptx) into one
// raster image per slide and lets reviewers attach text comments that are
// drawn as an overlay on top of the preserved slide rendering.
//
// The package is organised around three pieces: a reader that extracts the
// slide shape tree from the OOXML package, a Rasterizer that paints that tree
// into base images, and an overlay engine that composites accumulated comments
// onto a base image. A Session ties them together for the HTTP service in
// cmd/slidereview.
package slidereview

import (
	"errors"
	"fmt"
	"strings"
)

// Document is a parsed presentation: an ordered list of slides sharing one
// slide size. A Document is not modified after it has been read.
type Document struct {
	cx     int64 // slide width in EMU
	cy     int64 // slide height in EMU
	slides []*Slide
}

// NewDocument creates an empty document with the given slide size in EMU.
func NewDocument(cx, cy int64) *Document {
	return &Document{cx: cx, cy: cy, slides: make([]*Slide, 0)}
}

// Size returns the nominal slide size in EMU.
func (d *Document) Size() (cx, cy int64) {
	return d.cx, d.cy
}

// CanvasSize returns the pixel size shared by every slide raster.
func (d *Document) CanvasSize() (width, height int) {
	return EMUToPixel(d.cx), EMUToPixel(d.cy)
}

// Slides returns all slides in presentation order.
func (d *Document) Slides() []*Slide {
	return d.slides
}

// SlideCount returns the number of slides.
func (d *Document) SlideCount() int {
	return len(d.slides)
}

// CreateSlide appends a new empty slide and returns it.
func (d *Document) CreateSlide() *Slide {
	s := &Slide{}
	d.slides = append(d.slides, s)
	return s
}

// Validate checks the document for problems that prevent rasterization and
// returns an error describing all of them, or nil. The error wraps
// ErrInvalidCanvas when the slide size is one of the problems.
func (d *Document) Validate() error {
	canvas := d.canvasProblems()
	errs := append([]string(nil), canvas...)
	for i, s := range d.slides {
		if s == nil {
			errs = append(errs, fmt.Sprintf("slide %d is nil", i+1))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	msg := "validation failed:\n  " + strings.Join(errs, "\n  ")
	if len(canvas) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCanvas, msg)
	}
	return errors.New(msg)
}

// canvasProblems checks each side of the slide size against the range a
// presentation may declare.
func (d *Document) canvasProblems() []string {
	var errs []string
	for _, side := range []struct {
		name string
		emu  int64
	}{{"width", d.cx}, {"height", d.cy}} {
		switch px := EMUToPixel(side.emu); {
		case px <= 0:
			errs = append(errs, fmt.Sprintf("slide %s %d EMU is %d px, must be positive", side.name, side.emu, px))
		case side.emu > maxSlideEMU:
			errs = append(errs, fmt.Sprintf("slide %s %d EMU is %d px, must not exceed %d px", side.name, side.emu, px, EMUToPixel(maxSlideEMU)))
		}
	}
	return errs
}

// Slide is an ordered list of shapes. Later shapes paint over earlier ones.
type Slide struct {
	shapes []Shape
}

// Shapes returns the shapes in draw order.
func (s *Slide) Shapes() []Shape {
	return s.shapes
}

// AddShape appends a shape to the end of the draw order.
func (s *Slide) AddShape(shape Shape) {
	s.shapes = append(s.shapes, shape)
}

// CreateImageShape appends an image shape with the given payload.
func (s *Slide) CreateImageShape(data []byte) *ImageShape {
	is := &ImageShape{data: data}
	s.AddShape(is)
	return is
}

// CreateTextShape appends a text shape with the given paragraphs, each
// given as a single run.
func (s *Slide) CreateTextShape(paragraphs ...string) *TextShape {
	ts := &TextShape{}
	for _, p := range paragraphs {
		ts.AddParagraph(p)
	}
	s.AddShape(ts)
	return ts
}
