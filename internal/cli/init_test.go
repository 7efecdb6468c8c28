package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/config"
	"carteira/internal/core"
	"carteira/internal/log"
)

type recordingImporter struct {
	got core.Dataset
	err error
}

func (r *recordingImporter) Import(_ context.Context, ds core.Dataset) error {
	r.got = ds
	return r.err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportFile(t *testing.T) {
	path := writeFile(t, `{
		"categories": [{"id": "c1", "name": "Moradia", "type": "expense"}],
		"bankAccounts": [{"id": "b1", "bankName": "Itaú", "type": "checking"}],
		"transactions": [
			{"id": "t1", "type": "expense", "amount": 1500, "category": "c1", "date": "2024-03-10", "paid": true},
			{"id": "t2", "type": "investment", "amount": "-200.5", "bankAccount": "b1", "date": "not a date"}
		]
	}`)

	imp := &recordingImporter{}
	n, err := ImportFile(context.Background(), imp, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, core.Money{Cents: 150000}, imp.got.Transactions[0].Amount)
	assert.Equal(t, core.Money{Cents: -20050}, imp.got.Transactions[1].Amount)
	assert.True(t, imp.got.Transactions[1].Date.IsZero())
}

func TestImportFile_Errors(t *testing.T) {
	_, err := ImportFile(context.Background(), &recordingImporter{}, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = ImportFile(context.Background(), &recordingImporter{}, writeFile(t, `[not json`))
	assert.Error(t, err)

	boom := errors.New("store down")
	_, err = ImportFile(context.Background(), &recordingImporter{err: boom}, writeFile(t, `{}`))
	assert.ErrorIs(t, err, boom)
}

func TestInitSentry_Disabled(t *testing.T) {
	logger := log.New(log.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
	flush := InitSentry(&config.Config{}, logger, "test")
	require.NotNil(t, flush)
	assert.NotPanics(t, flush)
}

func TestSignalContext_Cancel(t *testing.T) {
	logger := log.New(log.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
	ctx, cancel := SignalContext(logger)
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
