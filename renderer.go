package slidereview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// textLineSpacing is the extra gap in pixels between lines of slide text.
const textLineSpacing = 4

// maxImagePixels bounds the decoded size of a single picture payload.
const maxImagePixels = 100 << 20

// RenderOptions configures slide rasterization.
type RenderOptions struct {
	// Typeface draws slide text. Nil means the built-in 7x13 bitmap face.
	Typeface *Typeface
	// Scaler resamples pictures to their placement size.
	// Default: nearest neighbour.
	Scaler xdraw.Interpolator
	// BackgroundColor overrides the white slide background.
	BackgroundColor *color.RGBA
}

// DefaultRenderOptions returns default rendering options.
func DefaultRenderOptions() *RenderOptions {
	return &RenderOptions{
		Scaler: xdraw.NearestNeighbor,
	}
}

// Scaler names accepted by ScalerByName.
const (
	ScalerNearest        = "nearest"
	ScalerApproxBiLinear = "approx-bilinear"
	ScalerBiLinear       = "bilinear"
	ScalerCatmullRom     = "catmull-rom"
)

// ScalerByName returns the picture resampler with the given name.
func ScalerByName(name string) (xdraw.Interpolator, error) {
	switch strings.ToLower(name) {
	case "", ScalerNearest:
		return xdraw.NearestNeighbor, nil
	case ScalerApproxBiLinear:
		return xdraw.ApproxBiLinear, nil
	case ScalerBiLinear:
		return xdraw.BiLinear, nil
	case ScalerCatmullRom:
		return xdraw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown scaler %q", name)
	}
}

// RasterResult is the output of rasterizing a document.
type RasterResult struct {
	// Images holds one base image per slide, in slide order. All images
	// have the same size.
	Images []*image.RGBA
	// Warnings lists the shapes that were skipped.
	Warnings []ShapeWarning
}

// Rasterizer paints slide shape trees into images.
type Rasterizer struct {
	opts RenderOptions
}

// NewRasterizer creates a Rasterizer. A nil opts uses DefaultRenderOptions.
func NewRasterizer(opts *RenderOptions) *Rasterizer {
	if opts == nil {
		opts = DefaultRenderOptions()
	}
	rz := &Rasterizer{opts: *opts}
	if rz.opts.Scaler == nil {
		rz.opts.Scaler = xdraw.NearestNeighbor
	}
	return rz
}

// Rasterize renders every slide of doc. The canvas size is derived once from
// the document's slide size. A canvas side that is not positive or larger
// than 5376 px fails the whole document with ErrInvalidCanvas, and a nil
// slide fails it with a plain validation error. A shape that cannot be drawn
// is skipped and reported in the result's warnings.
func (rz *Rasterizer) Rasterize(doc *Document) (*RasterResult, error) {
	if doc == nil {
		return nil, errors.New("document is nil")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	w, h := doc.CanvasSize()

	face, err := rz.opts.Typeface.NewFace()
	if err != nil {
		return nil, err
	}
	defer face.Close()

	res := &RasterResult{Images: make([]*image.RGBA, 0, len(doc.slides))}
	for i, slide := range doc.slides {
		img, warnings := rz.renderSlide(slide, i+1, w, h, face)
		res.Images = append(res.Images, img)
		res.Warnings = append(res.Warnings, warnings...)
		Logger().Debug("slide rasterized", "slide", i+1, "shapes", len(slide.shapes), "skipped", len(warnings))
	}
	return res, nil
}

func (rz *Rasterizer) renderSlide(slide *Slide, number, w, h int, face font.Face) (*image.RGBA, []ShapeWarning) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	bgColor := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if rz.opts.BackgroundColor != nil {
		bgColor = *rz.opts.BackgroundColor
		bgColor.A = 255
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{bgColor}, image.Point{}, draw.Src)

	r := &renderer{img: img, face: face, scaler: rz.opts.Scaler}

	var warnings []ShapeWarning
	for i, shape := range slide.shapes {
		if err := r.drawShape(shape); err != nil {
			sw := ShapeWarning{Slide: number, Shape: i, Kind: shape.Kind(), Name: shape.GetName(), Err: err}
			Logger().Warn("shape skipped", "slide", number, "shape", i, "kind", sw.Kind.String(), "name", sw.Name, "error", err)
			warnings = append(warnings, sw)
		}
	}
	return img, warnings
}

// --- renderer ---

type renderer struct {
	img    *image.RGBA
	face   font.Face
	scaler xdraw.Interpolator
}

// drawShape paints one shape. A failure, including a panic in an image
// decoder, affects only that shape.
func (r *renderer) drawShape(shape Shape) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render panic: %v", p)
		}
	}()

	switch s := shape.(type) {
	case *ImageShape:
		return r.renderImage(s)
	case *TextShape:
		return r.renderText(s)
	default:
		return fmt.Errorf("unsupported shape %T", shape)
	}
}

// renderImage scales the picture into its placement and composites it over
// what is already on the canvas. Transparent areas of the picture leave the
// slide background visible rather than replacing it.
func (r *renderer) renderImage(s *ImageShape) error {
	if s.loadErr != nil {
		return s.loadErr
	}
	if len(s.data) == 0 {
		return errors.New("empty image payload")
	}
	if !s.positioned {
		return errNoPosition
	}
	if !s.sized {
		return errors.New("picture has no size")
	}

	x := EMUToPixel(s.offsetX)
	y := EMUToPixel(s.offsetY)
	w := EMUToPixel(s.width)
	h := EMUToPixel(s.height)
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid picture size %dx%d px", w, h)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(s.data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return fmt.Errorf("%s image %dx%d exceeds maximum allowed pixels", format, cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(s.data))
	if err != nil {
		return fmt.Errorf("decode %s image: %w", format, err)
	}

	// Scale straight into the canvas; the destination is clipped to the
	// canvas bounds.
	r.scaler.Scale(r.img, image.Rect(x, y, x+w, y+h), src, src.Bounds(), xdraw.Over, nil)
	return nil
}

func (r *renderer) renderText(s *TextShape) error {
	if s.IsBlank() {
		return nil
	}
	if !s.positioned {
		return errNoPosition
	}

	x := EMUToPixel(s.offsetX)
	y := EMUToPixel(s.offsetY)
	lines := strings.Split(strings.TrimSuffix(normalizeText(s.Text()), "\n"), "\n")
	advance := r.face.Metrics().Height.Ceil() + textLineSpacing
	drawLines(r.img, r.face, color.Black, x, y, advance, lines)
	return nil
}

// --- Text drawing ---

// drawLines draws each line left-aligned at x, the top of the first line at
// top, and each following line advance pixels lower. Nothing is wrapped;
// glyphs outside dst are clipped.
func drawLines(dst draw.Image, face font.Face, c color.Color, x, top, advance int, lines []string) {
	ascent := face.Metrics().Ascent.Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(x, top+ascent+i*advance)
		d.DrawString(line)
	}
}
