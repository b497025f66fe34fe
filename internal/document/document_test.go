package document_test

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/routecards/constants"
	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/document"
	"github.com/joseph-ayodele/routecards/internal/document/documenttest"
	"github.com/joseph-ayodele/routecards/internal/layout"
)

func readParts(t *testing.T, data []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	parts := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		parts[f.Name] = string(b)
	}
	return parts
}

func Test_FirstSlide_Lists_Shapes_In_Order(t *testing.T) {
	t.Parallel()

	pres, err := document.Read(documenttest.Build(t, documenttest.RouteCard()))
	require.NoError(t, err)
	slide, err := pres.FirstSlide()
	require.NoError(t, err)

	want := []layout.Shape{
		{ID: 2, Name: "Logo", Text: "ООО Завод", HasText: true, Rect: layout.Rect{X: 200000, Y: 200000, W: 2000000, H: 300000}},
		{ID: 3, Name: "Title", Text: constants.DefaultAnchorText, HasText: true, Rect: documenttest.AnchorRect},
		{ID: 4, Name: "Body", Text: "Операция\nИсполнитель", HasText: true, Rect: layout.Rect{X: 200000, Y: 1500000, W: 8000000, H: 4000000}},
	}
	if diff := cmp.Diff(want, slide.Shapes()); diff != "" {
		t.Fatalf("shapes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, layout.Size{W: 9144000, H: 6858000}, slide.Size())
	assert.Equal(t, "ppt/slides/slide1.xml", slide.Name())
}

func Test_FirstSlide_Returns_ErrNoSlides_For_Empty_Presentation(t *testing.T) {
	t.Parallel()

	pres, err := document.Read(documenttest.Build(t, documenttest.Fixture{}))
	require.NoError(t, err)
	assert.Equal(t, 0, pres.SlideCount())

	_, err = pres.FirstSlide()
	require.ErrorIs(t, err, document.ErrNoSlides)
	require.ErrorIs(t, err, common.ErrInvalidTemplate)
}

func Test_Open_Rejects_Non_Package(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "template.pptx")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0o644))

	_, err := document.Open(bad)
	require.ErrorIs(t, err, common.ErrInvalidTemplate)

	_, err = document.Open(filepath.Join(dir, "missing.pptx"))
	require.ErrorIs(t, err, common.ErrStorage, "read failures are storage errors, not bad templates")
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, common.ErrInvalidTemplate)
}

func Test_Slide_Size_Defaults_To_Four_By_Three(t *testing.T) {
	t.Parallel()

	f := documenttest.RouteCard()
	f.Size = nil
	pres, err := document.Read(documenttest.Build(t, f))
	require.NoError(t, err)

	assert.Equal(t, layout.Size{W: 9144000, H: 6858000}, pres.SlideSize())
}

func Test_Shapes_Inherit_Placeholder_Position_From_Layout(t *testing.T) {
	t.Parallel()

	layoutRect := layout.Rect{X: 2500000, Y: 400000, W: 4000000, H: 800000}
	f := documenttest.Fixture{
		Slides: [][]documenttest.Shape{{
			{Name: "Title 1", Text: constants.DefaultAnchorText, Placeholder: "1", Inherit: true},
		}},
		Layout: []documenttest.Shape{
			{Name: "Other", Text: "x", Placeholder: "2", Rect: layout.Rect{X: 1, Y: 1, W: 1, H: 1}},
			{Name: "Title", Text: "Заголовок", Placeholder: "1", Rect: layoutRect},
		},
	}
	pres, err := document.Read(documenttest.Build(t, f))
	require.NoError(t, err)
	slide, err := pres.FirstSlide()
	require.NoError(t, err)

	shapes := slide.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, layoutRect, shapes[0].Rect)
}

func Test_AddPicture_And_TextBox_Round_Trip(t *testing.T) {
	t.Parallel()

	template := documenttest.Build(t, documenttest.RouteCard())
	original := bytes.Clone(template)
	pres, err := document.Read(template)
	require.NoError(t, err)
	slide, err := pres.FirstSlide()
	require.NoError(t, err)

	png := []byte("\x89PNG fake image")
	qrRect := layout.Rect{X: 2400000, Y: 600000, W: 400000, H: 400000}
	labelRect := layout.Rect{X: 7944000, Y: 200000, W: 1000000, H: 400000}
	require.NoError(t, slide.AddPicture(png, qrRect, "QR 000001"))
	require.NoError(t, slide.AddTextBox("№ 000001 <&>", labelRect, layout.AlignRight))

	out, err := pres.Bytes()
	require.NoError(t, err)

	reread, err := document.Read(out)
	require.NoError(t, err)
	s2, err := reread.FirstSlide()
	require.NoError(t, err)
	shapes := s2.Shapes()
	require.Len(t, shapes, 5)

	pic := shapes[3]
	assert.Equal(t, 5, pic.ID)
	assert.Equal(t, "QR 000001", pic.Name)
	assert.False(t, pic.HasText)
	assert.Equal(t, qrRect, pic.Rect)

	label := shapes[4]
	assert.Equal(t, 6, label.ID)
	assert.True(t, label.HasText)
	assert.Equal(t, "№ 000001 <&>", label.Text)
	assert.Equal(t, labelRect, label.Rect)

	parts := readParts(t, out)
	assert.Equal(t, string(png), parts["ppt/media/image1.png"])
	assert.Contains(t, parts["[Content_Types].xml"], `<Default Extension="png" ContentType="image/png"/>`)
	assert.Contains(t, parts["ppt/slides/_rels/slide1.xml.rels"], `Id="rId2"`)
	assert.Contains(t, parts["ppt/slides/_rels/slide1.xml.rels"], `Target="../media/image1.png"`)
	assert.Contains(t, parts["ppt/slides/slide1.xml"], `r:embed="rId2"`)
	assert.Contains(t, parts["ppt/slides/slide1.xml"], `<a:pPr algn="r"/>`)

	assert.Equal(t, original, template, "template bytes are untouched")
}

func Test_WriteTo_Preserves_Part_Order(t *testing.T) {
	t.Parallel()

	template := documenttest.Build(t, documenttest.RouteCard())
	pres, err := document.Read(template)
	require.NoError(t, err)
	slide, err := pres.FirstSlide()
	require.NoError(t, err)
	require.NoError(t, slide.AddPicture([]byte("png"), layout.Rect{W: 1, H: 1}, ""))

	var buf bytes.Buffer
	n, err := pres.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	names := func(data []byte) []string {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		var out []string
		for _, f := range zr.File {
			out = append(out, f.Name)
		}
		return out
	}
	before, after := names(template), names(buf.Bytes())
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before, after[:len(before)])
	assert.Equal(t, "ppt/media/image1.png", after[len(after)-1])
	assert.True(t, strings.HasPrefix(after[0], "[Content_Types]"))
}
