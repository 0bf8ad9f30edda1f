package slidereview

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// Reader is the interface for presentation readers.
type Reader interface {
	Read(path string) (*Document, error)
	ReadFromReader(r io.ReaderAt, size int64) (*Document, error)
}

// ReaderType represents the input format.
type ReaderType string

const (
	ReaderPowerPoint2007 ReaderType = "PowerPoint2007"
)

// NewReader creates a reader for the given format.
func NewReader(format ReaderType) (Reader, error) {
	switch format {
	case ReaderPowerPoint2007:
		return &PPTXReader{}, nil
	default:
		return nil, fmt.Errorf("unsupported reader format: %s", format)
	}
}

// Open reads a PPTX file from disk.
func Open(path string) (*Document, error) {
	return (&PPTXReader{}).Read(path)
}

// ReadFrom reads a PPTX from an io.ReaderAt with the given size.
func ReadFrom(r io.ReaderAt, size int64) (*Document, error) {
	return (&PPTXReader{}).ReadFromReader(r, size)
}

// PPTXReader reads PPTX files.
type PPTXReader struct{}

const (
	relsNamespace = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	relTypeSlide       = relsNamespace + "/slide"
	relTypeSlideLayout = relsNamespace + "/slideLayout"
	relTypeSlideMaster = relsNamespace + "/slideMaster"
)

// maxZipEntrySize is the maximum allowed size for a single file extracted from a ZIP.
// This prevents zip bomb attacks. 50 MB is generous for any legitimate PPTX part.
const maxZipEntrySize = 50 << 20 // 50 MB

// maxZipTotalSize is the cumulative limit for all extracted content from a single ZIP.
const maxZipTotalSize = 200 << 20 // 200 MB

// maxZipEntries is the maximum number of files allowed in a ZIP archive.
const maxZipEntries = 10000

// Read reads a presentation from a file path.
func (r *PPTXReader) Read(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return r.ReadFromReader(f, info.Size())
}

// ReadFromReader reads a presentation from an io.ReaderAt.
func (r *PPTXReader) ReadFromReader(reader io.ReaderAt, size int64) (*Document, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid reader size: %d", size)
	}
	if size > int64(maxZipTotalSize) {
		return nil, fmt.Errorf("file size %d exceeds maximum allowed (%d bytes)", size, maxZipTotalSize)
	}

	zr, err := zip.NewReader(reader, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	if len(zr.File) > maxZipEntries {
		return nil, fmt.Errorf("zip archive contains too many entries (%d > %d)", len(zr.File), maxZipEntries)
	}

	pkg := newPackage(zr)

	pres, err := pkg.readPresentation("ppt/presentation.xml")
	if err != nil {
		return nil, err
	}
	doc := NewDocument(0, 0)
	if pres.SldSz != nil {
		doc.cx = pres.SldSz.CX
		doc.cy = pres.SldSz.CY
	}

	presRels, err := pkg.readRelationships("ppt/presentation.xml")
	if err != nil {
		return nil, err
	}

	for _, id := range pres.SldIDs {
		rel, ok := presRels[id.RID]
		if !ok || rel.Type != relTypeSlide {
			continue
		}
		slide, err := pkg.readSlide(rel.resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to read slide %s: %w", rel.resolved, err)
		}
		doc.slides = append(doc.slides, slide)
	}

	return doc, nil
}

// pptxPackage gives bounded access to the parts of an opened PPTX archive.
type pptxPackage struct {
	files   map[string]*zip.File
	total   int64
	layouts map[string][]placeholderInfo
}

func newPackage(zr *zip.Reader) *pptxPackage {
	m := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		m[f.Name] = f
	}
	return &pptxPackage{files: m, layouts: make(map[string][]placeholderInfo)}
}

func (p *pptxPackage) has(name string) bool {
	_, ok := p.files[name]
	return ok
}

func (p *pptxPackage) readFile(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found in zip: %s", name)
	}
	if f.UncompressedSize64 > maxZipEntrySize {
		return nil, fmt.Errorf("file %s exceeds maximum allowed size (%d bytes)", name, maxZipEntrySize)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in zip: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, int64(maxZipEntrySize)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from zip: %w", name, err)
	}
	if int64(len(data)) > int64(maxZipEntrySize) {
		return nil, fmt.Errorf("file %s actual size exceeds maximum allowed size", name)
	}
	p.total += int64(len(data))
	if p.total > maxZipTotalSize {
		return nil, fmt.Errorf("extracted content exceeds maximum allowed total size (%d bytes)", maxZipTotalSize)
	}
	return data, nil
}

// --- presentation.xml ---

type xmlSlideID struct {
	RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
}

type xmlSlideSize struct {
	CX int64 `xml:"cx,attr"`
	CY int64 `xml:"cy,attr"`
}

type xmlPresentation struct {
	XMLName xml.Name      `xml:"presentation"`
	SldIDs  []xmlSlideID  `xml:"sldIdLst>sldId"`
	SldSz   *xmlSlideSize `xml:"sldSz"`
}

func (p *pptxPackage) readPresentation(name string) (*xmlPresentation, error) {
	data, err := p.readFile(name)
	if err != nil {
		return nil, fmt.Errorf("not a presentation: %w", err)
	}
	var pres xmlPresentation
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&pres); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return &pres, nil
}

// --- Relationship reading ---

type xmlRelForRead struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
	resolved   string
}

type xmlRelsForRead struct {
	XMLName       xml.Name        `xml:"Relationships"`
	Relationships []xmlRelForRead `xml:"Relationship"`
}

// relsPath returns the relationships part belonging to a part,
// e.g. ppt/slides/slide1.xml -> ppt/slides/_rels/slide1.xml.rels.
func relsPath(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// readRelationships returns the relationships of a part keyed by ID, with
// internal targets resolved to package part names. A part without a
// relationships file has none.
func (p *pptxPackage) readRelationships(part string) (map[string]xmlRelForRead, error) {
	name := relsPath(part)
	if !p.has(name) {
		return map[string]xmlRelForRead{}, nil
	}
	data, err := p.readFile(name)
	if err != nil {
		return nil, err
	}

	var rels xmlRelsForRead
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("failed to parse relationships %s: %w", name, err)
	}
	dir := path.Dir(part)
	m := make(map[string]xmlRelForRead, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		if !strings.EqualFold(rel.TargetMode, "External") {
			rel.resolved = resolveRelativePath(dir, rel.Target)
		}
		m[rel.ID] = rel
	}
	return m, nil
}

// firstRelOfType returns the resolved target of the first relationship
// with the given type, or "".
func firstRelOfType(rels map[string]xmlRelForRead, typ string) string {
	best := ""
	for id, rel := range rels {
		if rel.Type != typ || rel.resolved == "" {
			continue
		}
		// Map order is random; pick the lowest ID so reads are deterministic.
		if best == "" || id < best {
			best = id
		}
	}
	if best == "" {
		return ""
	}
	return rels[best].resolved
}

func resolveRelativePath(base, rel string) string {
	if strings.HasPrefix(rel, "/") {
		return strings.TrimPrefix(rel, "/")
	}

	baseParts := strings.Split(base, "/")
	relParts := strings.Split(rel, "/")

	result := make([]string, 0, len(baseParts)+len(relParts))
	for _, part := range baseParts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}

	for _, part := range relParts {
		if part == ".." {
			if len(result) > 0 {
				result = result[:len(result)-1]
			}
		} else if part != "." && part != "" {
			result = append(result, part)
		}
	}

	resolved := strings.Join(result, "/")

	// Keep resolved paths inside ppt/ so a malicious relationship target
	// cannot reach outside the presentation parts.
	if !strings.HasPrefix(resolved, "ppt/") {
		return "ppt/" + resolved
	}
	return resolved
}
