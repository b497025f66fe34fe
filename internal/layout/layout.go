// Package layout decides where the QR code and the form-number label go on a page.
// Everything is in EMU (English Metric Units, 914400 per inch), the native unit of
// presentation documents. The package does no I/O.
package layout

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/routecards/constants"
)

// Rect is a placement rectangle in EMU.
type Rect struct {
	X, Y, W, H int64
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// Size is a page size in EMU.
type Size struct {
	W, H int64
}

// Shape describes one shape on a page as the resolver sees it.
type Shape struct {
	ID      int
	Name    string
	Text    string
	HasText bool
	Rect    Rect
}

// Page is an ordered sequence of shapes with a size.
type Page interface {
	Shapes() []Shape
	Size() Size
}

// LabelPolicy selects where the number label goes.
type LabelPolicy string

const (
	// LabelCorner pins the label to the top-right corner of the page.
	LabelCorner LabelPolicy = "corner"
	// LabelAdjacent puts the label right of the anchor text, or under the QR code without one.
	LabelAdjacent LabelPolicy = "adjacent"
)

// Align is the horizontal text alignment of the label.
type Align string

const (
	AlignLeft  Align = "l"
	AlignRight Align = "r"
)

type Options struct {
	QRSize      int64
	Margin      int64
	AnchorText  string
	LabelWidth  int64
	LabelHeight int64
	LabelPolicy LabelPolicy

	// UnderQRLabelHeight is the label height when the adjacent policy has no anchor and
	// puts the label under the QR code.
	UnderQRLabelHeight int64
}

// DefaultOptions returns the sizes the route-card template was designed around.
func DefaultOptions() Options {
	return Options{
		QRSize:      400000,
		Margin:      200000,
		AnchorText:  constants.DefaultAnchorText,
		LabelWidth:  1000000,
		LabelHeight: 400000,
		LabelPolicy: LabelCorner,

		UnderQRLabelHeight: 200000,
	}
}

// Placement is the resolver's answer for one document.
type Placement struct {
	QR         Rect
	Label      Rect
	LabelText  string
	LabelAlign Align

	// Anchored reports whether the anchor text was found. AnchorIndex is its position
	// in the shape list, or -1.
	Anchored    bool
	AnchorIndex int
}

type Resolver struct {
	opts Options
}

func NewResolver(opts Options) *Resolver {
	def := DefaultOptions()
	if opts.QRSize <= 0 {
		opts.QRSize = def.QRSize
	}
	if opts.Margin < 0 {
		opts.Margin = def.Margin
	}
	if opts.AnchorText == "" {
		opts.AnchorText = def.AnchorText
	}
	if opts.LabelWidth <= 0 {
		opts.LabelWidth = def.LabelWidth
	}
	if opts.LabelHeight <= 0 {
		opts.LabelHeight = def.LabelHeight
	}
	if opts.UnderQRLabelHeight <= 0 {
		opts.UnderQRLabelHeight = def.UnderQRLabelHeight
	}
	if opts.LabelPolicy == "" {
		opts.LabelPolicy = def.LabelPolicy
	}
	return &Resolver{opts: opts}
}

func (r *Resolver) Options() Options {
	return r.opts
}

// FindAnchor returns the index of the first shape whose text contains the anchor, or -1.
func (r *Resolver) FindAnchor(shapes []Shape) int {
	for i, s := range shapes {
		if s.HasText && strings.Contains(s.Text, r.opts.AnchorText) {
			return i
		}
	}
	return -1
}

// Resolve computes the QR and label rectangles for formNumber on page.
func (r *Resolver) Resolve(page Page, formNumber string) Placement {
	shapes := page.Shapes()
	size := page.Size()
	o := r.opts

	p := Placement{
		LabelText:   constants.LabelPrefix + formNumber,
		LabelAlign:  AlignRight,
		AnchorIndex: r.FindAnchor(shapes),
	}
	p.Anchored = p.AnchorIndex >= 0

	if p.Anchored {
		a := shapes[p.AnchorIndex].Rect
		p.QR = Rect{
			X: a.X - o.QRSize - o.Margin,
			Y: a.Y + (a.H-o.QRSize)/2,
			W: o.QRSize,
			H: o.QRSize,
		}
	} else {
		p.QR = Rect{X: o.Margin, Y: o.Margin, W: o.QRSize, H: o.QRSize}
	}

	switch {
	case o.LabelPolicy == LabelAdjacent && p.Anchored:
		a := shapes[p.AnchorIndex].Rect
		p.Label = Rect{X: a.X + a.W + o.Margin, Y: a.Y, W: o.LabelWidth, H: a.H}
		p.LabelAlign = AlignLeft
	case o.LabelPolicy == LabelAdjacent:
		p.Label = Rect{X: o.Margin, Y: o.Margin + o.QRSize + o.Margin/2, W: o.LabelWidth, H: o.UnderQRLabelHeight}
		p.LabelAlign = AlignLeft
	default:
		p.Label = Rect{X: size.W - o.Margin - o.LabelWidth, Y: o.Margin, W: o.LabelWidth, H: o.LabelHeight}
	}
	return p
}
