package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/core"
	"github.com/joseph-ayodele/routecards/internal/entity"
)

type Mode string

const (
	ModeSingle Mode = "single"
	ModeBatch  Mode = "batch"
)

// Request is what an operator asks for. Count is only read in batch mode.
type Request struct {
	Mode       Mode
	FormNumber string
	Count      int
}

// Result holds either the single issued card or the batch outcome.
type Result struct {
	Mode  Mode
	Card  *entity.RouteCard
	Batch *core.BatchResult
	// OutputDir is where batch documents were written.
	OutputDir string
}

// Service is the entry point used by the command line: it validates operator input and
// dispatches to the generator or the batcher.
type Service struct {
	generator    core.DocumentGenerator
	batcher      *core.Batcher
	templatePath string
	outputDir    string
	numberWidth  int
	logger       *slog.Logger
}

// NewService creates a new issue service.
func NewService(generator core.DocumentGenerator, batcher *core.Batcher, cfg *common.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		generator:    generator,
		batcher:      batcher,
		templatePath: cfg.Template.Path,
		outputDir:    cfg.Output.Dir,
		numberWidth:  cfg.Batch.NumberWidth,
		logger:       logger,
	}
}

// Issue runs one request. Single mode returns the generator's error as is; batch mode
// returns a result whenever the batch started, even alongside an error.
func (s *Service) Issue(ctx context.Context, req Request) (*Result, error) {
	if req.Mode == "" {
		req.Mode = ModeSingle
	}
	validator := common.NewValidator()
	validator.Field("mode", string(req.Mode), common.OneOf(string(ModeSingle), string(ModeBatch)))
	validator.Field("form_number", strings.TrimSpace(req.FormNumber), common.Digits)
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}

	if _, err := os.Stat(s.templatePath); err != nil {
		return nil, common.WrapAppError(common.CodeInvalidTemplate, fmt.Sprintf("template file %q not found", s.templatePath), common.ErrInvalidTemplate, err)
	}

	if req.Mode == ModeBatch {
		res, err := s.batcher.GenerateBatch(ctx, s.templatePath, req.FormNumber, req.Count)
		if res == nil {
			return nil, err
		}
		return &Result{Mode: ModeBatch, Batch: res, OutputDir: s.outputDir}, err
	}

	n, err := core.NormalizeFormNumber(req.FormNumber, s.numberWidth)
	if err != nil {
		return nil, err
	}
	card, err := s.generator.Generate(ctx, s.templatePath, s.batcher.OutputPath(n), n)
	if err != nil {
		s.logger.Error("issue.single.failed", "form_number", n, "error", err)
		return nil, err
	}
	return &Result{Mode: ModeSingle, Card: card}, nil
}

// Summary renders the outcome for an operator.
func (r *Result) Summary() string {
	if r.Mode == ModeSingle {
		if r.Card == nil {
			return "no route card was created"
		}
		return fmt.Sprintf("route card %s created: %s", r.Card.FormNumber, r.Card.OutputPath)
	}

	b := r.Batch
	var sb strings.Builder
	switch {
	case b.Aborted:
		fmt.Fprintf(&sb, "batch aborted: these form numbers already exist in the ledger: %s", strings.Join(b.Duplicates(), ", "))
		return sb.String()
	case len(b.Succeeded) == 0:
		sb.WriteString("no route cards were created")
	default:
		fmt.Fprintf(&sb, "created %d of %d route cards in %s", len(b.Succeeded), b.Requested, r.OutputDir)
	}
	if len(b.Failures) > 0 {
		sb.WriteString("\n\nerrors:")
		for _, f := range b.Failures {
			fmt.Fprintf(&sb, "\n%s: %s", f.FormNumber, f.Message)
		}
	}
	return sb.String()
}

// ExitCode maps an outcome to the command-line exit status: 0 success, 1 failure,
// 2 invalid input, 3 partial batch.
func ExitCode(res *Result, err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrInvalidBatchSize), errors.Is(err, common.ErrInvalidTemplate):
		return 2
	case err != nil:
		return 1
	case res == nil:
		return 0
	case res.Batch != nil && res.Batch.Partial():
		return 3
	case res.Batch != nil && (res.Batch.Aborted || len(res.Batch.Succeeded) == 0):
		return 1
	}
	return 0
}
