package google

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"carteira/internal/core"
	"carteira/internal/report"
)

type fakeAPI struct {
	titles   []string
	added    []string
	updates  map[string][][]any
	listCall int
	err      error
}

func (f *fakeAPI) SheetTitles(context.Context, string) ([]string, error) {
	f.listCall++
	return f.titles, f.err
}

func (f *fakeAPI) AddSheet(_ context.Context, _ string, title string) error {
	f.added = append(f.added, title)
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeAPI) UpdateValues(_ context.Context, _ string, rng string, rows [][]any) error {
	if f.updates == nil {
		f.updates = make(map[string][][]any)
	}
	f.updates[rng] = rows
	return nil
}

func sampleConsolidated() report.Consolidated {
	ds := core.Dataset{Transactions: []core.Transaction{
		{Type: core.Income, Amount: core.Money{Cents: 500000}, Date: core.NewDate(2024, 1, 5)},
		{Type: core.Expense, Amount: core.Money{Cents: 123456}, Date: core.NewDate(2024, 1, 9)},
		{Type: core.Investment, Amount: core.Money{Cents: 100000}, Date: core.NewDate(2024, 2, 1)},
	}}
	return report.BuildConsolidated(ds, 2024)
}

func TestConsolidatedRows(t *testing.T) {
	rows := consolidatedRows(sampleConsolidated())

	if len(rows) != 14 {
		t.Fatalf("expected header + 12 months + totals, got %d rows", len(rows))
	}
	if rows[0][0] != "Mês" {
		t.Errorf("unexpected header %v", rows[0])
	}

	jan := rows[1]
	if jan[0] != "Jan" || jan[1] != 5000.0 || jan[2] != 1234.56 || jan[4] != 3765.44 {
		t.Errorf("unexpected January row %v", jan)
	}
	feb := rows[2]
	if feb[3] != 1000.0 || feb[5] != -1000.0 {
		t.Errorf("unexpected February row %v", feb)
	}
	totals := rows[13]
	if totals[0] != "Total" || totals[5] != 2765.44 {
		t.Errorf("unexpected totals row %v", totals)
	}
}

func TestExporter_ExportConsolidated(t *testing.T) {
	api := &fakeAPI{titles: []string{"2023 Resumo"}}
	e := newExporter(api, Options{SpreadsheetID: "sheet", SheetName: "Resumo"})
	ctx := context.Background()

	if err := e.ExportConsolidated(ctx, sampleConsolidated()); err != nil {
		t.Fatalf("ExportConsolidated() error = %v", err)
	}
	if len(api.added) != 1 || api.added[0] != "2024 Resumo" {
		t.Errorf("expected sheet to be created, added = %v", api.added)
	}
	if _, ok := api.updates["'2024 Resumo'!A1"]; !ok {
		t.Errorf("expected update of '2024 Resumo'!A1, got %v", api.updates)
	}

	// Second export reuses the known sheet.
	if err := e.ExportConsolidated(ctx, sampleConsolidated()); err != nil {
		t.Fatalf("ExportConsolidated() error = %v", err)
	}
	if api.listCall != 1 {
		t.Errorf("expected sheet titles to be listed once, got %d", api.listCall)
	}
}

func TestExporter_ListError(t *testing.T) {
	api := &fakeAPI{err: errors.New("403 forbidden")}
	e := newExporter(api, Options{SpreadsheetID: "sheet"})

	err := e.ExportConsolidated(context.Background(), sampleConsolidated())
	if err == nil || !strings.Contains(err.Error(), "list sheets") {
		t.Fatalf("expected list sheets error, got %v", err)
	}
	if len(api.updates) != 0 {
		t.Errorf("nothing should be written after a failure")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Resumo", 2024, "2024 Resumo"},
		{"2023 Resumo", 2024, "2023 Resumo"},
		{"  Resumo ", 2025, "2025 Resumo"},
		{"Resumo", 0, "Todos Resumo"},
		{"", 2024, ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil || err.Error() != "missing spreadsheet ID" {
		t.Errorf("expected missing spreadsheet ID error, got %v", err)
	}

	_, err := New(context.Background(), Options{SpreadsheetID: "id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}

	_, err = New(context.Background(), Options{SpreadsheetID: "id", CredentialsFile: filepath.Join(t.TempDir(), "nope.json")})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got %v", err)
	}
}
