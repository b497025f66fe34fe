package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/routecards/internal/document/documenttest"
)

type cli struct {
	dir      string
	template string
	outDir   string
	dsn      string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	dir := t.TempDir()
	return &cli{
		dir:      dir,
		template: documenttest.Write(t, dir, "template.pptx", documenttest.RouteCard()),
		outDir:   filepath.Join(dir, "route_cards"),
		dsn:      filepath.Join(dir, "ledger", "route_cards.db"),
	}
}

func (c *cli) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	full := append([]string{args[0]}, "--dsn", c.dsn, "--template", c.template, "--out-dir", c.outDir, "--log-level", "error")
	full = append(full, args[1:]...)
	code := run(t.Context(), full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func Test_Run_Issue_Single_Then_Duplicate(t *testing.T) {
	t.Parallel()

	c := newCLI(t)

	code, out, errOut := c.run(t, "issue", "--number", "41")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "route card 000041 created")
	assert.FileExists(t, filepath.Join(c.outDir, "route_card_000041.pptx"))

	code, _, errOut = c.run(t, "issue", "-n", "000041")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "DUPLICATE_FORM_NUMBER")
}

func Test_Run_Issue_Batch_Reports_Abort_And_Partial(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	code, _, errOut := c.run(t, "issue", "-n", "43")
	require.Equal(t, 0, code, errOut)

	code, out, _ := c.run(t, "issue", "-n", "41", "-c", "5")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "000043")

	require.NoError(t, os.MkdirAll(filepath.Join(c.outDir, "route_card_000051.pptx"), 0o755))
	code, out, _ = c.run(t, "issue", "-n", "50", "--count", "3")
	assert.Equal(t, 3, code)
	assert.Contains(t, out, "created 2 of 3 route cards")
	assert.Contains(t, out, "000051: STORAGE_ERROR")
}

func Test_Run_Usage_Errors(t *testing.T) {
	t.Parallel()

	c := newCLI(t)

	code, _, errOut := c.run(t, "issue")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--number is required")

	code, _, _ = c.run(t, "issue", "-n", "4x")
	assert.Equal(t, 2, code)

	code, _, _ = c.run(t, "issue", "-n", "1", "-c", "1001")
	assert.Equal(t, 2, code)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(t.Context(), []string{"frobnicate"}, &stdout, &stderr))
	assert.Equal(t, 2, run(t.Context(), nil, &stdout, &stderr))
	assert.Equal(t, 0, run(t.Context(), []string{"issue", "--help"}, &stdout, &stderr))
}

func Test_Run_Migrate_And_Export(t *testing.T) {
	t.Parallel()

	c := newCLI(t)

	code, out, errOut := c.run(t, "migrate")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "ledger ready: 0 route cards recorded")

	code, _, errOut = c.run(t, "issue", "-n", "1", "-c", "2")
	require.Equal(t, 0, code, errOut)

	xlsx := filepath.Join(c.dir, "export", "ledger.xlsx")
	code, _, errOut = c.run(t, "export", "--out", xlsx)
	require.Equal(t, 0, code, errOut)

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Route Cards")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "000001", rows[1][0])

	code, _, _ = c.run(t, "export", "--out", xlsx, "--from", "19-10-2026")
	assert.Equal(t, 2, code)
}
