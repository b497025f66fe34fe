package core

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/routecards/constants"
	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/entity"
	"github.com/joseph-ayodele/routecards/internal/repository"
)

// DocumentGenerator produces a single route card. *Generator implements it.
type DocumentGenerator interface {
	Generate(ctx context.Context, templatePath, outputPath, formNumber string) (*entity.RouteCard, error)
}

// Failure records why one form number was not issued.
type Failure struct {
	FormNumber string `json:"form_number"`
	Err        error  `json:"-"`
	Message    string `json:"message"`
}

// BatchResult aggregates the outcome of one batch. Succeeded and Failures are in
// form-number order.
type BatchResult struct {
	BatchID   uuid.UUID `json:"batch_id"`
	Requested int       `json:"requested"`
	Succeeded []string  `json:"succeeded"`
	Failures  []Failure `json:"failures"`
	// Aborted is set when the pre-check found numbers already in the ledger; nothing was generated.
	Aborted bool `json:"aborted"`
}

// Partial reports whether some but not all numbers were issued.
func (r *BatchResult) Partial() bool {
	return len(r.Succeeded) > 0 && len(r.Succeeded) < r.Requested
}

// Duplicates lists the numbers that failed because they were already issued.
func (r *BatchResult) Duplicates() []string {
	var out []string
	for _, f := range r.Failures {
		if errors.Is(f.Err, common.ErrDuplicateFormNumber) {
			out = append(out, f.FormNumber)
		}
	}
	return out
}

type BatchConfig struct {
	OutputDir    string
	OutputPrefix string
	OutputExt    string
	NumberWidth  int
	MaxCount     int
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		OutputDir:    constants.DefaultOutputDir,
		OutputPrefix: constants.DefaultOutputPrefix,
		OutputExt:    constants.DefaultOutputExt,
		NumberWidth:  constants.FormNumberWidth,
		MaxCount:     constants.MaxBatchCount,
	}
}

// Batcher issues consecutive form numbers, checking the whole range against the ledger first.
type Batcher struct {
	logger    *slog.Logger
	ledger    repository.RouteCardRepository
	generator DocumentGenerator
	cfg       BatchConfig
}

func NewBatcher(logger *slog.Logger, ledger repository.RouteCardRepository, generator DocumentGenerator, cfg BatchConfig) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultBatchConfig()
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = def.OutputPrefix
	}
	if cfg.OutputExt == "" {
		cfg.OutputExt = def.OutputExt
	}
	if cfg.NumberWidth <= 0 {
		cfg.NumberWidth = def.NumberWidth
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = def.MaxCount
	}
	return &Batcher{logger: logger, ledger: ledger, generator: generator, cfg: cfg}
}

// OutputPath is where the document for formNumber is written.
func (b *Batcher) OutputPath(formNumber string) string {
	return constants.OutputPath(b.cfg.OutputDir, b.cfg.OutputPrefix, formNumber, b.cfg.OutputExt)
}

// GenerateBatch issues count numbers starting at startNumber.
//
// If any number in the range is already in the ledger the batch is aborted before any
// document is produced: the result has Aborted set, one failure per duplicate and a nil
// error. Otherwise every number is attempted in order and individual failures are
// recorded without stopping the loop. ErrLedgerInconsistent is the exception: a document is
// already on disk without its record, so the batch stops there rather than saving more files
// the ledger may not hold, and the error is returned with the result collected so far.
// Cancellation is checked between items.
func (b *Batcher) GenerateBatch(ctx context.Context, templatePath, startNumber string, count int) (*BatchResult, error) {
	if count < 1 || count > b.cfg.MaxCount {
		return nil, common.InvalidBatchSizeError(count, b.cfg.MaxCount)
	}
	numbers, err := ExpandNumbers(startNumber, count, b.cfg.NumberWidth)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{BatchID: uuid.New(), Requested: count}
	ctx = common.WithBatchID(ctx, res.BatchID.String())
	log := common.LoggerFrom(ctx, b.logger)
	log.Info("batch.start", "first", numbers[0], "last", numbers[len(numbers)-1], "count", count)

	existing, err := b.ledger.FindExisting(ctx, numbers)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		for _, n := range existing {
			err := common.DuplicateFormNumberError(n)
			res.Failures = append(res.Failures, Failure{FormNumber: n, Err: err, Message: err.Error()})
		}
		res.Aborted = true
		log.Warn("batch.precheck.duplicates", "duplicates", existing)
		return res, nil
	}

	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			log.Warn("batch.cancelled", "succeeded", len(res.Succeeded), "error", err)
			return res, err
		}
		if _, err := b.generator.Generate(ctx, templatePath, b.OutputPath(n), n); err != nil {
			res.Failures = append(res.Failures, Failure{FormNumber: n, Err: err, Message: err.Error()})
			if errors.Is(err, common.ErrLedgerInconsistent) {
				log.Error("batch.halted", "form_number", n, "succeeded", len(res.Succeeded), "error", err)
				return res, err
			}
			log.Warn("batch.item.failed", "form_number", n, "error", err)
			continue
		}
		res.Succeeded = append(res.Succeeded, n)
	}

	log.Info("batch.done", "succeeded", len(res.Succeeded), "failed", len(res.Failures))
	return res, nil
}
