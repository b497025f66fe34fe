package core

import (
	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/layout"
)

// BatchConfigFrom maps the application config onto the batcher's settings.
func BatchConfigFrom(c *common.Config) BatchConfig {
	return BatchConfig{
		OutputDir:    c.Output.Dir,
		OutputPrefix: c.Output.Prefix,
		OutputExt:    c.Output.Ext,
		NumberWidth:  c.Batch.NumberWidth,
		MaxCount:     c.Batch.MaxCount,
	}
}

func LayoutOptionsFrom(c common.LayoutConfig) layout.Options {
	return layout.Options{
		QRSize:      c.QRSize,
		Margin:      c.Margin,
		AnchorText:  c.AnchorText,
		LabelWidth:  c.LabelWidth,
		LabelHeight: c.LabelHeight,
		LabelPolicy: layout.LabelPolicy(c.LabelPolicy),
	}
}
