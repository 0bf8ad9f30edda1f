package slidereview

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// --- shape tree XML ---

type xmlPoint struct {
	X int64 `xml:"x,attr"`
	Y int64 `xml:"y,attr"`
}

type xmlExtent struct {
	CX int64 `xml:"cx,attr"`
	CY int64 `xml:"cy,attr"`
}

type xmlXfrm struct {
	Off *xmlPoint  `xml:"off"`
	Ext *xmlExtent `xml:"ext"`
}

type xmlSpPr struct {
	Xfrm *xmlXfrm `xml:"xfrm"`
}

type xmlPlaceholder struct {
	Type string `xml:"type,attr"`
	Idx  *int   `xml:"idx,attr"`
}

type xmlCNvPr struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type xmlNonVisual struct {
	CNvPr xmlCNvPr `xml:"cNvPr"`
	NvPr  struct {
		Ph *xmlPlaceholder `xml:"ph"`
	} `xml:"nvPr"`
}

type xmlRun struct {
	Text string `xml:"t"`
}

type xmlParagraph struct {
	Runs []xmlRun `xml:"r"`
}

type xmlTxBody struct {
	Paragraphs []xmlParagraph `xml:"p"`
}

type xmlSp struct {
	NvSpPr xmlNonVisual `xml:"nvSpPr"`
	SpPr   xmlSpPr      `xml:"spPr"`
	TxBody *xmlTxBody   `xml:"txBody"`
}

type xmlBlip struct {
	Embed string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships embed,attr"`
	Link  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships link,attr"`
}

type xmlPic struct {
	NvPicPr  xmlNonVisual `xml:"nvPicPr"`
	BlipFill struct {
		Blip *xmlBlip `xml:"blip"`
	} `xml:"blipFill"`
	SpPr xmlSpPr `xml:"spPr"`
}

// walkShapeTree calls visit for every direct child element of the first
// p:spTree in data. visit must consume the element it is given, either with
// DecodeElement or Skip.
func walkShapeTree(data []byte, visit func(d *xml.Decoder, start xml.StartElement) error) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	treeDepth := -1
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to parse shape tree: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if treeDepth < 0 {
				depth++
				if t.Name.Local == "spTree" {
					treeDepth = depth
				}
				continue
			}
			if err := visit(d, t); err != nil {
				return err
			}
		case xml.EndElement:
			if treeDepth >= 0 {
				return nil
			}
			depth--
		}
	}
}

// --- placeholders ---

// placeholderInfo is the placement a layout or master placeholder passes on
// to the slide placeholders that refer to it.
type placeholderInfo struct {
	phType string
	idx    int
	xfrm   *xmlXfrm
}

func newPlaceholderInfo(ph *xmlPlaceholder, xfrm *xmlXfrm) placeholderInfo {
	info := placeholderInfo{phType: ph.Type, xfrm: xfrm}
	if info.phType == "" {
		info.phType = "obj"
	}
	if ph.Idx != nil {
		info.idx = *ph.Idx
	}
	return info
}

// masterPlaceholderType maps a layout placeholder type to the master
// placeholder type it inherits from.
func masterPlaceholderType(phType string) string {
	switch phType {
	case "title", "ctrTitle":
		return "title"
	case "dt", "ftr", "sldNum":
		return phType
	default:
		return "body"
	}
}

// readPlaceholders returns the placeholders of a layout or master part,
// with layout placeholders lacking a transform completed from the master.
// Results are cached per part.
func (p *pptxPackage) readPlaceholders(part string, inherit bool) ([]placeholderInfo, error) {
	if phs, ok := p.layouts[part]; ok {
		return phs, nil
	}
	data, err := p.readFile(part)
	if err != nil {
		return nil, err
	}

	var phs []placeholderInfo
	err = walkShapeTree(data, func(d *xml.Decoder, start xml.StartElement) error {
		var nv xmlNonVisual
		var spPr xmlSpPr
		switch start.Name.Local {
		case "sp":
			var sp xmlSp
			if err := d.DecodeElement(&sp, &start); err != nil {
				return err
			}
			nv, spPr = sp.NvSpPr, sp.SpPr
		case "pic":
			var pic xmlPic
			if err := d.DecodeElement(&pic, &start); err != nil {
				return err
			}
			nv, spPr = pic.NvPicPr, pic.SpPr
		default:
			return d.Skip()
		}
		if nv.NvPr.Ph != nil {
			phs = append(phs, newPlaceholderInfo(nv.NvPr.Ph, spPr.Xfrm))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", part, err)
	}

	if inherit {
		rels, err := p.readRelationships(part)
		if err != nil {
			return nil, err
		}
		if master := firstRelOfType(rels, relTypeSlideMaster); master != "" {
			masterPhs, err := p.readPlaceholders(master, false)
			if err != nil {
				return nil, err
			}
			for i := range phs {
				mt := masterPlaceholderType(phs[i].phType)
				for _, m := range masterPhs {
					if m.phType == mt {
						phs[i].xfrm = mergeXfrm(phs[i].xfrm, m.xfrm)
						break
					}
				}
			}
		}
	}

	p.layouts[part] = phs
	return phs, nil
}

// mergeXfrm fills the offset and extent missing from own with those of
// inherited.
func mergeXfrm(own, inherited *xmlXfrm) *xmlXfrm {
	if inherited == nil {
		return own
	}
	merged := xmlXfrm{}
	if own != nil {
		merged = *own
	}
	if merged.Off == nil {
		merged.Off = inherited.Off
	}
	if merged.Ext == nil {
		merged.Ext = inherited.Ext
	}
	return &merged
}

// --- slides ---

func (p *pptxPackage) readSlide(part string) (*Slide, error) {
	data, err := p.readFile(part)
	if err != nil {
		return nil, err
	}
	rels, err := p.readRelationships(part)
	if err != nil {
		return nil, err
	}

	var layoutPhs []placeholderInfo
	if layout := firstRelOfType(rels, relTypeSlideLayout); layout != "" && p.has(layout) {
		// A broken layout only costs the inherited positions.
		layoutPhs, err = p.readPlaceholders(layout, true)
		if err != nil {
			Logger().Warn("slide layout unreadable", "slide", part, "layout", layout, "error", err)
			layoutPhs = nil
		}
	}

	inherited := func(ph *xmlPlaceholder) *xmlXfrm {
		if ph == nil {
			return nil
		}
		want := newPlaceholderInfo(ph, nil)
		for _, l := range layoutPhs {
			if l.idx == want.idx {
				return l.xfrm
			}
		}
		return nil
	}

	slide := &Slide{}
	err = walkShapeTree(data, func(d *xml.Decoder, start xml.StartElement) error {
		switch start.Name.Local {
		case "sp":
			var sp xmlSp
			if err := d.DecodeElement(&sp, &start); err != nil {
				return err
			}
			ts := &TextShape{}
			ts.name = sp.NvSpPr.CNvPr.Name
			applyXfrm(&ts.BaseShape, mergeXfrm(sp.SpPr.Xfrm, inherited(sp.NvSpPr.NvPr.Ph)))
			if sp.TxBody != nil {
				for _, xp := range sp.TxBody.Paragraphs {
					runs := make([]string, 0, len(xp.Runs))
					for _, xr := range xp.Runs {
						runs = append(runs, xr.Text)
					}
					ts.paragraphs = append(ts.paragraphs, Paragraph{runs: runs})
				}
			}
			slide.AddShape(ts)
		case "pic":
			var pic xmlPic
			if err := d.DecodeElement(&pic, &start); err != nil {
				return err
			}
			is := &ImageShape{}
			is.name = pic.NvPicPr.CNvPr.Name
			applyXfrm(&is.BaseShape, mergeXfrm(pic.SpPr.Xfrm, inherited(pic.NvPicPr.NvPr.Ph)))
			p.loadImage(is, pic.BlipFill.Blip, rels)
			slide.AddShape(is)
		default:
			// Groups, connectors, graphic frames and alternate content are
			// not drawn.
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slide, nil
}

func applyXfrm(b *BaseShape, xfrm *xmlXfrm) {
	if xfrm == nil {
		return
	}
	if xfrm.Off != nil {
		b.SetPosition(xfrm.Off.X, xfrm.Off.Y)
	}
	if xfrm.Ext != nil {
		b.SetSize(xfrm.Ext.CX, xfrm.Ext.CY)
	}
}

// loadImage resolves the picture payload through the slide relationships.
// Failures are kept on the shape and reported when it is rasterized.
func (p *pptxPackage) loadImage(is *ImageShape, blip *xmlBlip, rels map[string]xmlRelForRead) {
	switch {
	case blip == nil:
		is.loadErr = errors.New("picture has no image")
		return
	case blip.Embed == "" && blip.Link != "":
		is.loadErr = fmt.Errorf("linked image %s is not embedded", blip.Link)
		return
	case blip.Embed == "":
		is.loadErr = errors.New("picture has no embedded image")
		return
	}
	rel, ok := rels[blip.Embed]
	if !ok || rel.resolved == "" {
		is.loadErr = fmt.Errorf("image relationship %s not found", blip.Embed)
		return
	}
	is.partName = rel.resolved
	data, err := p.readFile(rel.resolved)
	if err != nil {
		is.loadErr = err
		return
	}
	is.data = data
}
