package issue_test

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/core"
	"github.com/joseph-ayodele/routecards/internal/document/documenttest"
	"github.com/joseph-ayodele/routecards/internal/entity"
	"github.com/joseph-ayodele/routecards/internal/layout"
	"github.com/joseph-ayodele/routecards/internal/repository"
	"github.com/joseph-ayodele/routecards/internal/services/issue"
)

func newService(t *testing.T, withTemplate bool) (*issue.Service, repository.RouteCardRepository, *common.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := common.DefaultConfig()
	cfg.Template.Path = filepath.Join(dir, "template.pptx")
	cfg.Output.Dir = filepath.Join(dir, "route_cards")
	if withTemplate {
		documenttest.Write(t, dir, "template.pptx", documenttest.RouteCard())
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := repository.NewMemoryRouteCardRepository()
	gen := core.NewGenerator(logger, ledger, nil, layout.NewResolver(core.LayoutOptionsFrom(cfg.Layout)))
	batcher := core.NewBatcher(logger, ledger, gen, core.BatchConfigFrom(cfg))
	return issue.NewService(gen, batcher, cfg, logger), ledger, cfg
}

func Test_Issue_Single_Pads_Number_And_Names_File(t *testing.T) {
	t.Parallel()

	svc, ledger, cfg := newService(t, true)

	res, err := svc.Issue(t.Context(), issue.Request{Mode: issue.ModeSingle, FormNumber: " 43 "})
	require.NoError(t, err)
	require.NotNil(t, res.Card)
	assert.Equal(t, "000043", res.Card.FormNumber)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "route_card_000043.pptx"), res.Card.OutputPath)
	assert.FileExists(t, res.Card.OutputPath)
	assert.Equal(t, "route card 000043 created: "+res.Card.OutputPath, res.Summary())
	assert.Equal(t, 0, issue.ExitCode(res, nil))

	exists, err := ledger.Exists(t.Context(), "000043")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.Issue(t.Context(), issue.Request{FormNumber: "43"})
	require.ErrorIs(t, err, common.ErrDuplicateFormNumber)
	assert.Equal(t, 1, issue.ExitCode(nil, err))
}

func Test_Issue_Rejects_Bad_Input(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t, true)

	_, err := svc.Issue(t.Context(), issue.Request{FormNumber: "12-3"})
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, 2, issue.ExitCode(nil, err))

	_, err = svc.Issue(t.Context(), issue.Request{Mode: "many", FormNumber: "1"})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = svc.Issue(t.Context(), issue.Request{Mode: issue.ModeBatch, FormNumber: "1", Count: 1001})
	require.ErrorIs(t, err, common.ErrInvalidBatchSize)
	assert.Equal(t, 2, issue.ExitCode(nil, err))
}

func Test_Issue_Requires_Template(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t, false)

	_, err := svc.Issue(t.Context(), issue.Request{FormNumber: "1"})
	require.ErrorIs(t, err, common.ErrInvalidTemplate)
}

func Test_Issue_Batch_Summarises_Outcome(t *testing.T) {
	t.Parallel()

	svc, ledger, cfg := newService(t, true)
	_, err := ledger.Append(t.Context(), &entity.RouteCard{FormNumber: "000003", OutputPath: "old.pptx"})
	require.NoError(t, err)

	res, err := svc.Issue(t.Context(), issue.Request{Mode: issue.ModeBatch, FormNumber: "1", Count: 5})
	require.NoError(t, err)
	require.NotNil(t, res.Batch)
	assert.True(t, res.Batch.Aborted)
	assert.Equal(t, "batch aborted: these form numbers already exist in the ledger: 000003", res.Summary())
	assert.Equal(t, 1, issue.ExitCode(res, nil))

	res, err = svc.Issue(t.Context(), issue.Request{Mode: issue.ModeBatch, FormNumber: "4", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, "created 2 of 2 route cards in "+cfg.Output.Dir, res.Summary())
	assert.Equal(t, 0, issue.ExitCode(res, nil))
}

func Test_Result_Summary_Lists_Errors_For_Partial_Batch(t *testing.T) {
	t.Parallel()

	storage := common.StorageError("write route_card_000002.pptx", errors.New("is a directory"))
	res := &issue.Result{
		Mode:      issue.ModeBatch,
		OutputDir: "route_cards",
		Batch: &core.BatchResult{
			Requested: 3,
			Succeeded: []string{"000001", "000003"},
			Failures:  []core.Failure{{FormNumber: "000002", Err: storage, Message: storage.Error()}},
		},
	}

	assert.Equal(t,
		"created 2 of 3 route cards in route_cards\n\nerrors:\n000002: STORAGE_ERROR: write route_card_000002.pptx: is a directory",
		res.Summary())
	assert.Equal(t, 3, issue.ExitCode(res, nil))
}
