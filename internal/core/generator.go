package core

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/joseph-ayodele/routecards/constants"
	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/document"
	"github.com/joseph-ayodele/routecards/internal/entity"
	"github.com/joseph-ayodele/routecards/internal/layout"
	"github.com/joseph-ayodele/routecards/internal/qr"
	"github.com/joseph-ayodele/routecards/internal/repository"
)

const outputFilePerms = 0o644

// Generator produces one stamped route card from the template and records it in the ledger.
type Generator struct {
	logger   *slog.Logger
	ledger   repository.RouteCardRepository
	encoder  *qr.Encoder
	resolver *layout.Resolver
	now      func() time.Time
}

func NewGenerator(
	logger *slog.Logger,
	ledger repository.RouteCardRepository,
	encoder *qr.Encoder,
	resolver *layout.Resolver,
) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if encoder == nil {
		encoder = qr.NewEncoder()
	}
	if resolver == nil {
		resolver = layout.NewResolver(layout.DefaultOptions())
	}
	return &Generator{
		logger:   logger,
		ledger:   ledger,
		encoder:  encoder,
		resolver: resolver,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for created_at.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate stamps formNumber onto a fresh copy of the template, saves it to outputPath
// and appends the ledger record.
//
// A number already in the ledger fails with ErrDuplicateFormNumber before anything is
// written. If the document was saved but the record could not be appended the error is
// ErrLedgerInconsistent and the file stays on disk.
func (g *Generator) Generate(ctx context.Context, templatePath, outputPath, formNumber string) (*entity.RouteCard, error) {
	log := common.LoggerFrom(ctx, g.logger).With("form_number", formNumber)

	v := common.NewValidator().
		Field("form_number", formNumber, common.Digits, common.MaxLength(constants.MaxFormNumberLength)).
		Field("template_path", templatePath, common.Required).
		Field("output_path", outputPath, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	exists, err := g.ledger.Exists(ctx, formNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Warn("routecard.generate.duplicate")
		return nil, common.DuplicateFormNumberError(formNumber)
	}

	data, placement, err := g.render(templatePath, formNumber)
	if err != nil {
		log.Error("routecard.render.failed", "template", templatePath, "error", err)
		return nil, err
	}
	if !placement.Anchored {
		log.Warn("routecard.layout.fallback", "anchor_text", g.resolver.Options().AnchorText, "qr", placement.QR.String())
	}

	if err := save(outputPath, data); err != nil {
		log.Error("routecard.save.failed", "output_path", outputPath, "error", err)
		return nil, err
	}

	card, err := g.ledger.Append(ctx, &entity.RouteCard{
		FormNumber: formNumber,
		CreatedAt:  g.now(),
		OutputPath: outputPath,
	})
	if err != nil {
		log.Error("routecard.ledger.inconsistent", "output_path", outputPath, "error", err)
		return nil, common.WrapAppError(
			common.CodeLedgerInconsistent,
			fmt.Sprintf("form number %s was saved to %s but not recorded in the ledger", formNumber, outputPath),
			common.ErrLedgerInconsistent,
			err,
		)
	}

	log.Info("routecard.generate.ok", "output_path", outputPath, "anchored", placement.Anchored)
	return card, nil
}

// render returns the serialised document with the QR code and label placed on the first slide.
func (g *Generator) render(templatePath, formNumber string) ([]byte, layout.Placement, error) {
	png, err := g.encoder.PNG(formNumber)
	if err != nil {
		return nil, layout.Placement{}, err
	}

	pres, err := document.Open(templatePath)
	if err != nil {
		return nil, layout.Placement{}, err
	}
	slide, err := pres.FirstSlide()
	if err != nil {
		return nil, layout.Placement{}, err
	}

	placement := g.resolver.Resolve(slide, formNumber)
	if err := slide.AddPicture(png, placement.QR, "QR "+formNumber); err != nil {
		return nil, placement, err
	}
	if err := slide.AddTextBox(placement.LabelText, placement.Label, placement.LabelAlign); err != nil {
		return nil, placement, err
	}

	data, err := pres.Bytes()
	if err != nil {
		return nil, placement, common.StorageError("serialise document", err)
	}
	return data, placement, nil
}

// save creates the parent directories and writes data atomically. Directories created
// here are not removed on failure.
func save(outputPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return common.StorageError("create output directory for "+outputPath, err)
	}
	if err := atomic.WriteFile(outputPath, bytes.NewReader(data)); err != nil {
		return common.StorageError("write "+outputPath, err)
	}
	if err := os.Chmod(outputPath, outputFilePerms); err != nil {
		return common.StorageError("set permissions on "+outputPath, err)
	}
	return nil
}
