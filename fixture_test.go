package slidereview

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

// Test fixtures: small PPTX packages written in memory.

const fxNamespaces = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

// fxShape describes one p:sp or p:pic element.
type fxShape struct {
	pic   bool
	name  string
	xfrm  *[4]int64 // x, y, cx, cy in EMU; nil omits a:xfrm
	ph    string    // attributes of p:ph; "" for no placeholder
	paras [][]string
	media []byte // picture payload
	embed string // overrides the generated r:embed
	link  string // r:link instead of r:embed
	raw   string // emitted verbatim instead of a shape
}

type fxDeck struct {
	cx, cy   int64
	noSize   bool
	slides   [][]fxShape
	layout   []fxShape
	master   []fxShape
	noLayout bool
}

// inch converts inches to EMU.
func inch(n float64) int64 {
	return int64(n * 914400)
}

func textBox(name string, x, y int64, paras ...string) fxShape {
	s := fxShape{name: name, xfrm: &[4]int64{x, y, inch(2), inch(1)}}
	for _, p := range paras {
		s.paras = append(s.paras, []string{p})
	}
	return s
}

func picture(name string, x, y, cx, cy int64, data []byte) fxShape {
	return fxShape{pic: true, name: name, xfrm: &[4]int64{x, y, cx, cy}, media: data}
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func writeXfrm(b *strings.Builder, xfrm *[4]int64) {
	if xfrm == nil {
		return
	}
	fmt.Fprintf(b, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, xfrm[0], xfrm[1], xfrm[2], xfrm[3])
}

func writeNvPr(b *strings.Builder, ph string) {
	if ph == "" {
		b.WriteString(`<p:nvPr/>`)
		return
	}
	fmt.Fprintf(b, `<p:nvPr><p:ph %s/></p:nvPr>`, ph)
}

// shapeTreeXML renders a part's shape tree. Picture payloads are added to
// media and referenced through rels.
func shapeTreeXML(root string, shapes []fxShape, rels *[]string, media map[string][]byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><p:%s %s><p:cSld><p:spTree>`, root, fxNamespaces)
	b.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)
	for i, s := range shapes {
		id := i + 2
		switch {
		case s.raw != "":
			b.WriteString(s.raw)
		case s.pic:
			embed := s.embed
			if embed == "" && s.media != nil {
				n := len(media) + 1
				name := fmt.Sprintf("image%d.png", n)
				media["ppt/media/"+name] = s.media
				embed = fmt.Sprintf("rIdImg%d", n)
				*rels = append(*rels, fmt.Sprintf(`<Relationship Id="%s" Type="%s/image" Target="../media/%s"/>`, embed, relsNamespace, name))
			}
			fmt.Fprintf(&b, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="%s"/><p:cNvPicPr/>`, id, xmlEscape(s.name))
			writeNvPr(&b, s.ph)
			b.WriteString(`</p:nvPicPr><p:blipFill>`)
			switch {
			case s.link != "":
				fmt.Fprintf(&b, `<a:blip r:link="%s"/>`, s.link)
			case embed != "":
				fmt.Fprintf(&b, `<a:blip r:embed="%s"/>`, embed)
			}
			b.WriteString(`<a:stretch><a:fillRect/></a:stretch></p:blipFill><p:spPr>`)
			writeXfrm(&b, s.xfrm)
			b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`)
		default:
			fmt.Fprintf(&b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr/>`, id, xmlEscape(s.name))
			writeNvPr(&b, s.ph)
			b.WriteString(`</p:nvSpPr><p:spPr>`)
			writeXfrm(&b, s.xfrm)
			b.WriteString(`</p:spPr><p:txBody><a:bodyPr/><a:lstStyle/>`)
			for _, runs := range s.paras {
				b.WriteString(`<a:p>`)
				for _, r := range runs {
					fmt.Fprintf(&b, `<a:r><a:rPr lang="en-US"/><a:t>%s</a:t></a:r>`, xmlEscape(r))
				}
				b.WriteString(`<a:endParaRPr lang="en-US"/></a:p>`)
			}
			b.WriteString(`</p:txBody></p:sp>`)
		}
	}
	fmt.Fprintf(&b, `</p:spTree></p:cSld></p:%s>`, root)
	return b.String()
}

func relsXML(rels []string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		strings.Join(rels, "") + `</Relationships>`
}

// buildPPTX writes the deck as a PPTX package.
func buildPPTX(t *testing.T, d fxDeck) []byte {
	t.Helper()
	if d.cx == 0 && d.cy == 0 && !d.noSize {
		d.cx, d.cy = 9144000, 6858000
	}

	parts := map[string]string{}
	media := map[string][]byte{}

	var presRels, sldIDs []string
	presRels = append(presRels, fmt.Sprintf(`<Relationship Id="rId1" Type="%s" Target="slideMasters/slideMaster1.xml"/>`, relTypeSlideMaster))
	for i, shapes := range d.slides {
		n := i + 1
		rid := fmt.Sprintf("rId%d", n+1)
		presRels = append(presRels, fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="slides/slide%d.xml"/>`, rid, relTypeSlide, n))
		sldIDs = append(sldIDs, fmt.Sprintf(`<p:sldId id="%d" r:id="%s"/>`, 255+n, rid))

		var rels []string
		if !d.noLayout {
			rels = append(rels, fmt.Sprintf(`<Relationship Id="rId1" Type="%s" Target="../slideLayouts/slideLayout1.xml"/>`, relTypeSlideLayout))
		}
		parts[fmt.Sprintf("ppt/slides/slide%d.xml", n)] = shapeTreeXML("sld", shapes, &rels, media)
		parts[fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n)] = relsXML(rels)
	}

	var layoutRels []string
	parts["ppt/slideLayouts/slideLayout1.xml"] = shapeTreeXML("sldLayout", d.layout, &layoutRels, media)
	layoutRels = append(layoutRels, fmt.Sprintf(`<Relationship Id="rId1" Type="%s" Target="../slideMasters/slideMaster1.xml"/>`, relTypeSlideMaster))
	parts["ppt/slideLayouts/_rels/slideLayout1.xml.rels"] = relsXML(layoutRels)

	var masterRels []string
	parts["ppt/slideMasters/slideMaster1.xml"] = shapeTreeXML("sldMaster", d.master, &masterRels, media)
	parts["ppt/slideMasters/_rels/slideMaster1.xml.rels"] = relsXML(masterRels)

	size := ""
	if !d.noSize {
		size = fmt.Sprintf(`<p:sldSz cx="%d" cy="%d"/>`, d.cx, d.cy)
	}
	parts["ppt/presentation.xml"] = fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<p:presentation %s><p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`+
		`<p:sldIdLst>%s</p:sldIdLst>%s<p:notesSz cx="6858000" cy="9144000"/></p:presentation>`,
		fxNamespaces, strings.Join(sldIDs, ""), size)
	parts["ppt/_rels/presentation.xml.rels"] = relsXML(presRels)
	parts["[Content_Types].xml"] = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Default Extension="png" ContentType="image/png"/></Types>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name string, data []byte) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	for name, content := range parts {
		write(name, []byte(content))
	}
	for name, data := range media {
		write(name, data)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// readDeck builds the deck and reads it back as a Document.
func readDeck(t *testing.T, d fxDeck) *Document {
	t.Helper()
	data := buildPPTX(t, d)
	doc, err := ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	return doc
}

// solidPNG returns a w x h PNG filled with c.
func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// countPixels counts the pixels of img inside r that satisfy match.
func countPixels(img image.Image, r image.Rectangle, match func(c color.RGBA) bool) int {
	n := 0
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if match(color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)) {
				n++
			}
		}
	}
	return n
}

func isBlack(c color.RGBA) bool { return c.R == 0 && c.G == 0 && c.B == 0 && c.A == 255 }
func isWhite(c color.RGBA) bool { return c.R == 255 && c.G == 255 && c.B == 255 && c.A == 255 }
func isRed(c color.RGBA) bool   { return c.R == 255 && c.G == 0 && c.B == 0 && c.A == 255 }
