package slidereview

import (
	"errors"
	"fmt"
)

var (
	// ErrSlideNotFound is returned when a slide number has no base image in
	// the current session generation.
	ErrSlideNotFound = errors.New("slide not found")

	// ErrInvalidCanvas is returned when a document's slide size does not
	// yield a positive pixel canvas. It aborts the whole conversion.
	ErrInvalidCanvas = errors.New("invalid canvas size")

	// ErrUnsupportedFile is returned for uploads that are not .pptx files.
	ErrUnsupportedFile = errors.New("only .pptx files are supported")
)

// ShapeWarning records a shape that was skipped during rasterization. The
// rest of the slide is still rendered.
type ShapeWarning struct {
	Slide int // 1-based slide number
	Shape int // 0-based index in the slide's draw order
	Kind  ShapeKind
	Name  string
	Err   error
}

func (w ShapeWarning) Error() string {
	if w.Name != "" {
		return fmt.Sprintf("slide %d: %s shape %d (%q): %v", w.Slide, w.Kind, w.Shape, w.Name, w.Err)
	}
	return fmt.Sprintf("slide %d: %s shape %d: %v", w.Slide, w.Kind, w.Shape, w.Err)
}

func (w ShapeWarning) Unwrap() error { return w.Err }
