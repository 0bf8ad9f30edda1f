// Command inspect prints the shape tree of a presentation as the rasterizer
// sees it, and how much of each picture placement ended up painted.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"

	slidereview "github.com/VantageDataChat/slidereview"
)

func main() {
	only := flag.Int("slide", 0, "Only inspect this slide (1-based)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-slide n] <file.pptx>\n", os.Args[0])
		os.Exit(2)
	}

	doc, err := slidereview.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
	cx, cy := doc.Size()
	w, h := doc.CanvasSize()
	fmt.Printf("Slides: %d\nSize: %dx%d EMU, canvas %dx%d px\n", doc.SlideCount(), cx, cy, w, h)

	res, err := slidereview.NewRasterizer(nil).Rasterize(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}
	skipped := map[[2]int]error{}
	for _, sw := range res.Warnings {
		skipped[[2]int{sw.Slide, sw.Shape}] = sw.Err
	}

	for i, slide := range doc.Slides() {
		n := i + 1
		if *only != 0 && *only != n {
			continue
		}
		fmt.Printf("\n=== Slide %d (%d shapes) ===\n", n, len(slide.Shapes()))
		for j, shape := range slide.Shapes() {
			pos := "no position"
			if shape.HasPosition() {
				pos = fmt.Sprintf("at (%d,%d)", slidereview.EMUToPixel(shape.GetOffsetX()), slidereview.EMUToPixel(shape.GetOffsetY()))
			}
			fmt.Printf("  [%d] %s %q %s\n", j, shape.Kind(), shape.GetName(), pos)

			switch s := shape.(type) {
			case *slidereview.ImageShape:
				describeImage(s, res.Images[i])
			case *slidereview.TextShape:
				for _, p := range s.Paragraphs() {
					fmt.Printf("      %q\n", p.Text())
				}
			}
			if err, ok := skipped[[2]int{n, j}]; ok {
				fmt.Printf("      skipped: %v\n", err)
			}
		}
	}
}

func describeImage(s *slidereview.ImageShape, img *image.RGBA) {
	if err := s.LoadError(); err != nil {
		fmt.Printf("      payload: %v\n", err)
		return
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(s.Data()))
	if err != nil {
		fmt.Printf("      payload %s (%d bytes): %v\n", s.PartName(), len(s.Data()), err)
		return
	}
	fmt.Printf("      payload %s: %s %dx%d, %d bytes\n", s.PartName(), format, cfg.Width, cfg.Height, len(s.Data()))

	if !s.HasPosition() {
		return
	}
	x, y := slidereview.EMUToPixel(s.GetOffsetX()), slidereview.EMUToPixel(s.GetOffsetY())
	r := image.Rect(x, y, x+slidereview.EMUToPixel(s.GetWidth()), y+slidereview.EMUToPixel(s.GetHeight())).Intersect(img.Bounds())
	total, painted := 0, 0
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for py := r.Min.Y; py < r.Max.Y; py++ {
		for px := r.Min.X; px < r.Max.X; px++ {
			total++
			if img.RGBAAt(px, py) != white {
				painted++
			}
		}
	}
	fmt.Printf("      placement %v: %d/%d px non-white\n", r, painted, total)
}
