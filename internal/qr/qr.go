// Package qr renders form numbers as QR code PNG images.
package qr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/skip2/go-qrcode"

	"github.com/joseph-ayodele/routecards/internal/common"
)

const (
	// DefaultModuleSize is the edge of one QR module in pixels.
	DefaultModuleSize = 10
	// DefaultBorder is the quiet zone in modules.
	DefaultBorder = 1
)

var palette = color.Palette{color.White, color.Black}

// Encoder turns strings into QR code images at the lowest error-correction level
// and the smallest version the content fits.
type Encoder struct {
	ModuleSize int
	Border     int
	Level      qrcode.RecoveryLevel
}

func NewEncoder() *Encoder {
	return &Encoder{
		ModuleSize: DefaultModuleSize,
		Border:     DefaultBorder,
		Level:      qrcode.Low,
	}
}

// Image renders content as a two-colour paletted image.
func (e *Encoder) Image(content string) (*image.Paletted, error) {
	if content == "" {
		return nil, common.InvalidInputErrorf("qr content is empty")
	}
	code, err := qrcode.New(content, e.Level)
	if err != nil {
		return nil, common.WrapAppError(common.CodeInvalidInput, "encode qr code", common.ErrInvalidInput, err)
	}
	code.DisableBorder = true
	bitmap := code.Bitmap()

	scale := max(e.ModuleSize, 1)
	border := max(e.Border, 0)
	modules := len(bitmap) + 2*border
	img := image.NewPaletted(image.Rect(0, 0, modules*scale, modules*scale), palette)

	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			px, py := (x+border)*scale, (y+border)*scale
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetColorIndex(px+dx, py+dy, 1)
				}
			}
		}
	}
	return img, nil
}

// PNG renders content and encodes it as a 1-bit PNG.
func (e *Encoder) PNG(content string) ([]byte, error) {
	img, err := e.Image(content)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, common.WrapError(err, "encode qr png")
	}
	return buf.Bytes(), nil
}
