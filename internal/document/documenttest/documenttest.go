// Package documenttest builds small presentation packages for tests.
package documenttest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/routecards/constants"
	"github.com/joseph-ayodele/routecards/internal/layout"
)

// Shape is a text shape on a fixture slide. Placeholder shapes carry a ph element
// with the given idx and leave out their transform when Inherit is set.
type Shape struct {
	Name        string
	Text        string
	Rect        layout.Rect
	Placeholder string
	Inherit     bool
}

// Fixture describes a presentation. A nil Size omits sldSz.
type Fixture struct {
	Size   *layout.Size
	Slides [][]Shape
	// Layout shapes are written to the single slide layout.
	Layout []Shape
}

// AnchorRect is where RouteCard puts the anchor text.
var AnchorRect = layout.Rect{X: 3000000, Y: 500000, W: 3000000, H: 600000}

// RouteCard is a one-slide template with a title shape carrying the anchor text.
func RouteCard() Fixture {
	return Fixture{
		Size: &layout.Size{W: 9144000, H: 6858000},
		Slides: [][]Shape{{
			{Name: "Logo", Text: "ООО Завод", Rect: layout.Rect{X: 200000, Y: 200000, W: 2000000, H: 300000}},
			{Name: "Title", Text: constants.DefaultAnchorText, Rect: AnchorRect},
			{Name: "Body", Text: "Операция\nИсполнитель", Rect: layout.Rect{X: 200000, Y: 1500000, W: 8000000, H: 4000000}},
		}},
	}
}

// WithoutAnchor is a one-slide template that lacks the anchor text.
func WithoutAnchor() Fixture {
	return Fixture{
		Size: &layout.Size{W: 12192000, H: 6858000},
		Slides: [][]Shape{{
			{Name: "Title", Text: "ROUTE CARD", Rect: AnchorRect},
		}},
	}
}

// Build returns the package bytes for f.
func Build(tb testing.TB, f Fixture) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, body string) {
		w, err := zw.Create(name)
		if err != nil {
			tb.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}

	var overrides strings.Builder
	for i := range f.Slides {
		fmt.Fprintf(&overrides, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	write("[Content_Types].xml", header+`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
		`<Default Extension="xml" ContentType="application/xml"/>`+
		`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`+
		`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`+
		`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`+
		overrides.String()+`</Types>`)

	write("_rels/.rels", header+`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>`+
		`</Relationships>`)

	var ids, presRels strings.Builder
	presRels.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>`)
	for i := range f.Slides {
		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
		fmt.Fprintf(&presRels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, i+2, i+1)
	}
	size := ""
	if f.Size != nil {
		size = fmt.Sprintf(`<p:sldSz cx="%d" cy="%d"/>`, f.Size.W, f.Size.H)
	}
	write("ppt/presentation.xml", header+`<p:presentation `+namespaces+`>`+
		`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`+
		`<p:sldIdLst>`+ids.String()+`</p:sldIdLst>`+size+`<p:notesSz cx="6858000" cy="9144000"/></p:presentation>`)
	write("ppt/_rels/presentation.xml.rels", rels(presRels.String()))

	write("ppt/slideMasters/slideMaster1.xml", header+`<p:sldMaster `+namespaces+`>`+tree(nil)+
		`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst></p:sldMaster>`)
	write("ppt/slideMasters/_rels/slideMaster1.xml.rels", rels(
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`))

	write("ppt/slideLayouts/slideLayout1.xml", header+`<p:sldLayout `+namespaces+`>`+tree(f.Layout)+`</p:sldLayout>`)
	write("ppt/slideLayouts/_rels/slideLayout1.xml.rels", rels(
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>`))

	for i, shapes := range f.Slides {
		write(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), header+`<p:sld `+namespaces+`>`+tree(shapes)+`</p:sld>`)
		write(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), rels(
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`))
	}

	if err := zw.Close(); err != nil {
		tb.Fatalf("close package: %v", err)
	}
	return buf.Bytes()
}

// Write builds f into dir/name and returns the path.
func Write(tb testing.TB, dir, name string, f Fixture) string {
	tb.Helper()

	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Build(tb, f), 0o644); err != nil {
		tb.Fatalf("write fixture: %v", err)
	}
	return p
}

const (
	header     = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
	namespaces = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`
)

func rels(body string) string {
	return header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + body + `</Relationships>`
}

func tree(shapes []Shape) string {
	var b strings.Builder
	b.WriteString(`<p:cSld><p:spTree>`)
	b.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>`)
	b.WriteString(`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`)
	for i, s := range shapes {
		id := i + 2
		ph := ""
		if s.Placeholder != "" {
			ph = fmt.Sprintf(`<p:ph type="body" idx="%s"/>`, s.Placeholder)
		}
		fmt.Fprintf(&b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr/><p:nvPr>%s</p:nvPr></p:nvSpPr>`, id, s.Name, ph)
		if s.Inherit {
			b.WriteString(`<p:spPr/>`)
		} else {
			fmt.Fprintf(&b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm></p:spPr>`, s.Rect.X, s.Rect.Y, s.Rect.W, s.Rect.H)
		}
		b.WriteString(`<p:txBody><a:bodyPr/><a:lstStyle/>`)
		for _, line := range strings.Split(s.Text, "\n") {
			fmt.Fprintf(&b, `<a:p><a:r><a:rPr lang="ru-RU"/><a:t>%s</a:t></a:r></a:p>`, line)
		}
		b.WriteString(`</p:txBody></p:sp>`)
	}
	b.WriteString(`</p:spTree></p:cSld>`)
	return b.String()
}
