package constants

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// FormNumberWidth is the minimum number of digits in a form number.
	FormNumberWidth = 6
	// MaxFormNumberLength is the widest key the ledger column holds.
	MaxFormNumberLength = 32
	// MaxOutputPrefixLength caps the file-name prefix.
	MaxOutputPrefixLength = 64

	// MaxBatchCount is the default ceiling for a single batch.
	MaxBatchCount = 1000

	DefaultTemplatePath = "template.pptx"
	DefaultOutputDir    = "route_cards"
	DefaultOutputPrefix = "route_card"
	DefaultOutputExt    = "pptx"

	// DefaultAnchorText is the marker printed on the template next to which the QR code goes.
	DefaultAnchorText = "МАРШРУТНАЯ КАРТА"

	// LabelPrefix precedes the form number in the printed label.
	LabelPrefix = "№ "
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// OutputPath returns {dir}/{prefix}_{formNumber}.{ext}.
func OutputPath(dir, prefix, formNumber, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", prefix, formNumber, NormalizeExt(ext)))
}
