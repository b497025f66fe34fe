package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/routecards/internal/layout"
)

// Slide is one slide of a Presentation. It satisfies layout.Page.
type Slide struct {
	pres *Presentation
	name string
}

var _ layout.Page = (*Slide)(nil)

// shapeElements are the spTree children that are shapes.
var shapeElements = map[string]bool{
	"sp":           true,
	"pic":          true,
	"grpSp":        true,
	"graphicFrame": true,
	"cxnSp":        true,
	"contentPart":  true,
}

type slideXML struct {
	Tree struct {
		Items []shapeXML `xml:",any"`
	} `xml:"cSld>spTree"`
}

type shapeXML struct {
	XMLName xml.Name
	Parts   []shapePartXML `xml:",any"`
}

// shapePartXML covers the non-visual properties, shape properties, frame transform
// and text body children of a shape.
type shapePartXML struct {
	XMLName    xml.Name
	CNvPr      *cNvPrXML      `xml:"cNvPr"`
	Ph         *phXML         `xml:"nvPr>ph"`
	Xfrm       *xfrmXML       `xml:"xfrm"`
	Off        *offXML        `xml:"off"`
	Ext        *extXML        `xml:"ext"`
	Paragraphs []paragraphXML `xml:"p"`
}

type cNvPrXML struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type phXML struct {
	Type string `xml:"type,attr"`
	Idx  string `xml:"idx,attr"`
}

type xfrmXML struct {
	Off *offXML `xml:"off"`
	Ext *extXML `xml:"ext"`
}

type offXML struct {
	X int64 `xml:"x,attr"`
	Y int64 `xml:"y,attr"`
}

type extXML struct {
	Cx int64 `xml:"cx,attr"`
	Cy int64 `xml:"cy,attr"`
}

type paragraphXML struct {
	Items []struct {
		XMLName xml.Name
		Text    string `xml:"t"`
	} `xml:",any"`
}

type parsedShape struct {
	layout.Shape
	hasRect bool
	ph      *phXML
}

func parseShapes(data []byte) ([]parsedShape, error) {
	var doc slideXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	shapes := make([]parsedShape, 0, len(doc.Tree.Items))
	for _, item := range doc.Tree.Items {
		if !shapeElements[item.XMLName.Local] {
			continue
		}
		var s parsedShape
		for _, pt := range item.Parts {
			switch {
			case pt.CNvPr != nil:
				s.ID, s.Name = pt.CNvPr.ID, pt.CNvPr.Name
				if pt.Ph != nil {
					s.ph = pt.Ph
				}
			case pt.Xfrm != nil && pt.Xfrm.Off != nil && pt.Xfrm.Ext != nil:
				s.Rect = layout.Rect{X: pt.Xfrm.Off.X, Y: pt.Xfrm.Off.Y, W: pt.Xfrm.Ext.Cx, H: pt.Xfrm.Ext.Cy}
				s.hasRect = true
			case pt.XMLName.Local == "xfrm" && pt.Off != nil && pt.Ext != nil:
				s.Rect = layout.Rect{X: pt.Off.X, Y: pt.Off.Y, W: pt.Ext.Cx, H: pt.Ext.Cy}
				s.hasRect = true
			case pt.XMLName.Local == "txBody":
				s.HasText = true
				s.Text = bodyText(pt.Paragraphs)
			}
		}
		shapes = append(shapes, s)
	}
	return shapes, nil
}

// bodyText joins paragraphs with newlines; line breaks inside a paragraph count as newlines too.
func bodyText(paragraphs []paragraphXML) string {
	lines := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		var b strings.Builder
		for _, it := range p.Items {
			switch it.XMLName.Local {
			case "r", "fld":
				b.WriteString(it.Text)
			case "br":
				b.WriteByte('\n')
			}
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// Name is the slide's part name inside the package.
func (s *Slide) Name() string {
	return s.name
}

func (s *Slide) Size() layout.Size {
	return s.pres.size
}

// Shapes lists the top-level shapes in document order. Placeholders without their own
// transform take the position of the matching layout or master placeholder.
// A slide that cannot be parsed has no shapes.
func (s *Slide) Shapes() []layout.Shape {
	shapes, err := s.shapes()
	if err != nil {
		return nil
	}
	return shapes
}

func (s *Slide) shapes() ([]layout.Shape, error) {
	data, _ := s.pres.part(s.name)
	parsed, err := parseShapes(data)
	if err != nil {
		return nil, invalidTemplate("parse "+s.name, err)
	}
	out := make([]layout.Shape, len(parsed))
	for i, ps := range parsed {
		if !ps.hasRect && ps.ph != nil {
			if r, ok := s.inheritedRect(ps.ph); ok {
				ps.Rect = r
			}
		}
		out[i] = ps.Shape
	}
	return out, nil
}

func (s *Slide) inheritedRect(ph *phXML) (layout.Rect, bool) {
	layoutPart, ok := s.pres.related(s.name, relSlideLayout)
	if !ok {
		return layout.Rect{}, false
	}
	if r, ok := s.pres.placeholderRect(layoutPart, ph, true); ok {
		return r, true
	}
	masterPart, ok := s.pres.related(layoutPart, relSlideMaster)
	if !ok {
		return layout.Rect{}, false
	}
	return s.pres.placeholderRect(masterPart, ph, false)
}

func (p *Presentation) related(source, relType string) (string, bool) {
	rels, err := p.relationships(source)
	if err != nil {
		return "", false
	}
	r, ok := rels.first(relType)
	if !ok {
		return "", false
	}
	return resolveTarget(source, r.Target), true
}

// placeholderRect finds the placeholder matching ph in partName. Layouts match on idx
// first; masters only carry one placeholder per type.
func (p *Presentation) placeholderRect(partName string, ph *phXML, byIdx bool) (layout.Rect, bool) {
	data, ok := p.part(partName)
	if !ok {
		return layout.Rect{}, false
	}
	parsed, err := parseShapes(data)
	if err != nil {
		return layout.Rect{}, false
	}
	if byIdx && ph.Idx != "" {
		for _, c := range parsed {
			if c.ph != nil && c.hasRect && c.ph.Idx == ph.Idx {
				return c.Rect, true
			}
		}
	}
	want := placeholderType(ph.Type, !byIdx)
	for _, c := range parsed {
		if c.ph != nil && c.hasRect && placeholderType(c.ph.Type, !byIdx) == want {
			return c.Rect, true
		}
	}
	return layout.Rect{}, false
}

func placeholderType(t string, master bool) string {
	if t == "" {
		t = "obj"
	}
	if !master {
		return t
	}
	switch t {
	case "ctrTitle":
		return "title"
	case "subTitle", "obj":
		return "body"
	}
	return t
}

// nextShapeID returns one past the highest cNvPr id anywhere on the slide.
func (s *Slide) nextShapeID() (int, error) {
	data, _ := s.pres.part(s.name)
	dec := xml.NewDecoder(bytes.NewReader(data))
	highest := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, invalidTemplate("parse "+s.name, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "cNvPr" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "id" && a.Name.Space == "" {
				if n, err := strconv.Atoi(a.Value); err == nil && n > highest {
					highest = n
				}
			}
		}
	}
	return highest + 1, nil
}

// AddPicture embeds a PNG image at r. An empty name becomes "Picture N".
func (s *Slide) AddPicture(png []byte, r layout.Rect, name string) error {
	id, err := s.nextShapeID()
	if err != nil {
		return err
	}
	if name == "" {
		name = fmt.Sprintf("Picture %d", id-1)
	}

	media := s.pres.nextMediaName("png")
	s.pres.put(media, png)
	if err := s.pres.ensureDefaultContentType("png", "image/png"); err != nil {
		return err
	}
	rid, err := s.pres.addRelationship(s.name, relImage, relativeTarget(s.name, media))
	if err != nil {
		return err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<p:pic xmlns:p="%s" xmlns:a="%s" xmlns:r="%s">`, nsPresentationML, nsDrawingML, nsRelationships)
	fmt.Fprintf(&b, `<p:nvPicPr><p:cNvPr id="%d" name="%s"/>`, id, escape(name))
	b.WriteString(`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`)
	fmt.Fprintf(&b, `<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`, rid)
	b.WriteString(`<p:spPr>`)
	writeXfrm(&b, r)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`)
	return s.insert(b.String())
}

// AddTextBox adds a single-paragraph text box at r.
func (s *Slide) AddTextBox(text string, r layout.Rect, align layout.Align) error {
	id, err := s.nextShapeID()
	if err != nil {
		return err
	}
	if align == "" {
		align = layout.AlignLeft
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<p:sp xmlns:p="%s" xmlns:a="%s">`, nsPresentationML, nsDrawingML)
	fmt.Fprintf(&b, `<p:nvSpPr><p:cNvPr id="%d" name="TextBox %d"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`, id, id-1)
	b.WriteString(`<p:spPr>`)
	writeXfrm(&b, r)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>`)
	b.WriteString(`<p:txBody><a:bodyPr wrap="none" rtlCol="0"/><a:lstStyle/>`)
	fmt.Fprintf(&b, `<a:p><a:pPr algn="%s"/><a:r><a:rPr lang="ru-RU" dirty="0"/><a:t>%s</a:t></a:r></a:p>`, align, escape(text))
	b.WriteString(`</p:txBody></p:sp>`)
	return s.insert(b.String())
}

func (s *Slide) insert(fragment string) error {
	data, _ := s.pres.part(s.name)
	out, ok := insertBeforeClose(data, "spTree", fragment)
	if !ok {
		return invalidTemplate("slide "+s.name+" has no shape tree", nil)
	}
	s.pres.put(s.name, out)
	return nil
}

func writeXfrm(b *bytes.Buffer, r layout.Rect) {
	fmt.Fprintf(b, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, r.X, r.Y, r.W, r.H)
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
