// Package document reads presentation (.pptx) packages, inspects the first slide and
// adds pictures and text boxes to it.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/layout"
)

// ErrNoSlides is returned by FirstSlide for a presentation without slides.
var ErrNoSlides = errors.New("presentation has no slides")

const (
	nsPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRelationships  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPackageRels    = "http://schemas.openxmlformats.org/package/2006/relationships"

	relOfficeDocument = nsRelationships + "/officeDocument"
	relSlide          = nsRelationships + "/slide"
	relSlideLayout    = nsRelationships + "/slideLayout"
	relSlideMaster    = nsRelationships + "/slideMaster"
	relImage          = nsRelationships + "/image"

	contentTypesPart = "[Content_Types].xml"
	rootRelsPart     = "_rels/.rels"
)

// defaultSlideSize is 4:3 at 10in x 7.5in, used when the presentation does not declare one.
var defaultSlideSize = layout.Size{W: 9144000, H: 6858000}

type part struct {
	name     string
	method   uint16
	modified time.Time
	data     []byte
}

// Presentation is an in-memory .pptx package. Changes are only visible through
// WriteTo or Bytes; the file it was read from is never touched.
type Presentation struct {
	parts []*part
	index map[string]*part

	mainPart string
	size     layout.Size
}

// Open reads the package at path.
func Open(filePath string) (*Presentation, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, common.StorageError("read template "+filePath, err)
	}
	p, err := Read(data)
	if err != nil {
		return nil, common.WrapError(err, filePath)
	}
	return p, nil
}

// Read parses a package held in memory.
func Read(data []byte) (*Presentation, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, invalidTemplate("not a zip package", err)
	}

	p := &Presentation{index: make(map[string]*part, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, invalidTemplate("open part "+f.Name, err)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, invalidTemplate("read part "+f.Name, err)
		}
		p.add(&part{name: f.Name, method: f.Method, modified: f.Modified, data: b})
	}

	if err := p.loadMainPart(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Presentation) add(pt *part) {
	p.parts = append(p.parts, pt)
	p.index[pt.name] = pt
}

func (p *Presentation) part(name string) ([]byte, bool) {
	pt, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return pt.data, true
}

func (p *Presentation) put(name string, data []byte) {
	if pt, ok := p.index[name]; ok {
		pt.data = data
		return
	}
	p.add(&part{name: name, method: zip.Deflate, modified: time.Now(), data: data})
}

type presentationXML struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
	SlideSize *struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

func (p *Presentation) loadMainPart() error {
	if _, ok := p.part(contentTypesPart); !ok {
		return invalidTemplate("missing "+contentTypesPart, nil)
	}
	p.mainPart = "ppt/presentation.xml"
	if rels, err := p.relationships(""); err == nil {
		if r, ok := rels.first(relOfficeDocument); ok {
			p.mainPart = resolveTarget("", r.Target)
		}
	}
	doc, err := p.presentation()
	if err != nil {
		return err
	}
	p.size = defaultSlideSize
	if doc.SlideSize != nil && doc.SlideSize.Cx > 0 && doc.SlideSize.Cy > 0 {
		p.size = layout.Size{W: doc.SlideSize.Cx, H: doc.SlideSize.Cy}
	}
	return nil
}

func (p *Presentation) presentation() (*presentationXML, error) {
	data, ok := p.part(p.mainPart)
	if !ok {
		return nil, invalidTemplate("missing "+p.mainPart, nil)
	}
	var doc presentationXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, invalidTemplate("parse "+p.mainPart, err)
	}
	return &doc, nil
}

// SlideSize is the page size declared by the presentation.
func (p *Presentation) SlideSize() layout.Size {
	return p.size
}

// SlideCount returns the number of slides in presentation order.
func (p *Presentation) SlideCount() int {
	doc, err := p.presentation()
	if err != nil {
		return 0
	}
	return len(doc.SlideIDs)
}

// FirstSlide returns the first slide in presentation order.
func (p *Presentation) FirstSlide() (*Slide, error) {
	doc, err := p.presentation()
	if err != nil {
		return nil, err
	}
	if len(doc.SlideIDs) == 0 {
		return nil, invalidTemplate("template needs at least one slide", ErrNoSlides)
	}
	rels, err := p.relationships(p.mainPart)
	if err != nil {
		return nil, err
	}
	rid := doc.SlideIDs[0].RID
	r, ok := rels.byID(rid)
	if !ok || r.Type != relSlide {
		return nil, invalidTemplate(fmt.Sprintf("slide relationship %q not found", rid), nil)
	}
	name := resolveTarget(p.mainPart, r.Target)
	data, ok := p.part(name)
	if !ok {
		return nil, invalidTemplate("missing slide part "+name, nil)
	}
	if _, err := parseShapes(data); err != nil {
		return nil, invalidTemplate("parse "+name, err)
	}
	return &Slide{pres: p, name: name}, nil
}

// WriteTo serialises the package, keeping the original part order.
func (p *Presentation) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, pt := range p.parts {
		method := pt.method
		if method != zip.Store {
			method = zip.Deflate
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: pt.name, Method: method, Modified: pt.modified})
		if err != nil {
			return cw.n, common.WrapError(err, "write part "+pt.name)
		}
		if _, err := fw.Write(pt.data); err != nil {
			return cw.n, common.WrapError(err, "write part "+pt.name)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, common.WrapError(err, "finish package")
	}
	return cw.n, nil
}

// Bytes returns the serialised package.
func (p *Presentation) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

type contentTypesXML struct {
	Defaults []struct {
		Extension string `xml:"Extension,attr"`
	} `xml:"Default"`
}

// ensureDefaultContentType registers a Default content type for ext if none exists.
func (p *Presentation) ensureDefaultContentType(ext, contentType string) error {
	data, _ := p.part(contentTypesPart)
	var ct contentTypesXML
	if err := xml.Unmarshal(data, &ct); err != nil {
		return invalidTemplate("parse "+contentTypesPart, err)
	}
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return nil
		}
	}
	entry := fmt.Sprintf(`<Default Extension="%s" ContentType="%s"/>`, ext, contentType)
	out, ok := insertBeforeClose(data, "Types", entry)
	if !ok {
		return invalidTemplate("malformed "+contentTypesPart, nil)
	}
	p.put(contentTypesPart, out)
	return nil
}

// nextMediaName returns an unused ppt/media/imageN.ext part name.
func (p *Presentation) nextMediaName(ext string) string {
	for i := 1; ; i++ {
		name := fmt.Sprintf("ppt/media/image%d.%s", i, ext)
		if _, taken := p.index[name]; !taken {
			return name
		}
	}
}

func invalidTemplate(message string, cause error) error {
	return common.WrapAppError(common.CodeInvalidTemplate, message, common.ErrInvalidTemplate, cause)
}

// resolveTarget resolves a relationship target against the part that owns the relationship.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Join(path.Dir(source), target), "/")
}

// relativeTarget is the inverse of resolveTarget for parts in sibling directories.
func relativeTarget(source, target string) string {
	var from []string
	if dir := path.Dir(source); dir != "." {
		from = strings.Split(dir, "/")
	}
	to := strings.Split(target, "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	var b strings.Builder
	for range from[i:] {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(to[i:], "/"))
	return b.String()
}
