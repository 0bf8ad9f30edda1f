package slidereview

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
)

// Comment overlay layout, in pixels. Comment i is drawn with the top of its
// line at CommentMarginTop + i*CommentLineHeight.
const (
	CommentMarginLeft = 10
	CommentMarginTop  = 10
	CommentLineHeight = 20
)

// OverlayOptions configures how comments are drawn over a base image.
type OverlayOptions struct {
	// Typeface draws the comments. Nil means the built-in 7x13 bitmap face.
	Typeface   *Typeface
	Color      color.RGBA
	MarginLeft int
	MarginTop  int
	LineHeight int
}

// DefaultOverlayOptions returns the default comment layout: opaque red text,
// 10 px margins, 20 px per comment.
func DefaultOverlayOptions() *OverlayOptions {
	return &OverlayOptions{
		Color:      color.RGBA{R: 255, A: 255},
		MarginLeft: CommentMarginLeft,
		MarginTop:  CommentMarginTop,
		LineHeight: CommentLineHeight,
	}
}

// Overlay composites comments onto a copy of base and returns the flattened,
// opaque result. base is never modified. The output depends only on base,
// comments and opts, so rendering the full comment list again from the same
// base always gives the same pixels.
//
// Each comment takes exactly one line; embedded line breaks are drawn as
// spaces. Nothing is wrapped or truncated, and lines below the image are
// clipped.
func Overlay(base image.Image, comments []string, opts *OverlayOptions) (*image.RGBA, error) {
	if opts == nil {
		opts = DefaultOverlayOptions()
	}
	b := base.Bounds()

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), base, b.Min, draw.Src)

	if len(comments) > 0 {
		face, err := opts.Typeface.NewFace()
		if err != nil {
			return nil, err
		}
		defer face.Close()

		layer := image.NewRGBA(out.Bounds())
		lines := make([]string, len(comments))
		for i, c := range comments {
			lines[i] = commentLine(c)
		}
		drawLines(layer, face, opts.Color, opts.MarginLeft, opts.MarginTop, opts.LineHeight, lines)
		draw.Draw(out, out.Bounds(), layer, image.Point{}, draw.Over)
	}

	flatten(out)
	return out, nil
}

// commentLine prepares a comment for single-line drawing.
func commentLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	return normalizeText(s)
}

// flatten drops the alpha channel by compositing img over opaque black,
// which for premultiplied RGBA means forcing alpha to 255.
func flatten(img *image.RGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}
