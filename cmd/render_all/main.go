package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	slidereview "github.com/VantageDataChat/slidereview"
)

func main() {
	dst := flag.String("o", ".", "Output directory")
	scaler := flag.String("scaler", slidereview.ScalerNearest, "Picture scaler: nearest, approx-bilinear, bilinear, catmull-rom")
	fontName := flag.String("font", slidereview.TypefaceBasic, "Typeface: basic, goregular, gomono or a font file")
	fontSize := flag.Float64("font-size", 13, "Font size in points for non-bitmap typefaces")
	verbose := flag.Bool("v", false, "Log per-slide details to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <file.pptx>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	src := flag.Arg(0)

	if *verbose {
		slidereview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if err := os.MkdirAll(*dst, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	reader, err := slidereview.NewReader(slidereview.ReaderPowerPoint2007)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reader: %v\n", err)
		os.Exit(1)
	}
	doc, err := reader.Read(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}

	opts := slidereview.DefaultRenderOptions()
	if opts.Scaler, err = slidereview.ScalerByName(*scaler); err != nil {
		fmt.Fprintf(os.Stderr, "scaler: %v\n", err)
		os.Exit(2)
	}
	if opts.Typeface, err = slidereview.LoadTypeface(*fontName, *fontSize); err != nil {
		fmt.Fprintf(os.Stderr, "font: %v\n", err)
		os.Exit(2)
	}

	res, err := slidereview.NewRasterizer(opts).Rasterize(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}

	for i, img := range res.Images {
		data, err := slidereview.EncodePNG(img)
		if err != nil {
			fmt.Fprintf(os.Stderr, "slide %d: %v\n", i+1, err)
			os.Exit(1)
		}
		path := filepath.Join(*dst, slidereview.SlideFileName(i+1))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "slide %d: %v\n", i+1, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Rendered %d slides to %s\n", len(res.Images), *dst)
}
