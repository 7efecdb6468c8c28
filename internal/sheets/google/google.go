// Package google exports report tables to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"carteira/internal/report"
	"carteira/internal/services"
)

var _ services.ConsolidatedExporter = (*Exporter)(nil)

// Header of the consolidated sheet.
var consolidatedHeader = []any{"Mês", "Receitas", "Despesas", "Investimentos", "Saldo", "Saldo final"}

// Options configures the exporter. Credentials are a service account, given
// inline or as a file path.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// sheetsAPI is the part of the Sheets API the exporter uses.
type sheetsAPI interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
	UpdateValues(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

// Exporter writes one sheet per year named "<year> <SheetName>".
type Exporter struct {
	api           sheetsAPI
	spreadsheetID string
	sheetBase     string

	mu    sync.Mutex
	known map[string]bool
}

func New(ctx context.Context, opts Options) (*Exporter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newExporter(&serviceAPI{svc: svc}, opts), nil
}

func newExporter(api sheetsAPI, opts Options) *Exporter {
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Resumo"
	}
	return &Exporter{
		api:           api,
		spreadsheetID: opts.SpreadsheetID,
		sheetBase:     base,
		known:         make(map[string]bool),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// ExportConsolidated overwrites the year sheet with the consolidated table,
// creating the sheet when it does not exist yet.
func (e *Exporter) ExportConsolidated(ctx context.Context, c report.Consolidated) error {
	title := yearPrefixedName(e.sheetBase, c.Year)
	if err := e.ensureSheet(ctx, title); err != nil {
		return err
	}

	rng := fmt.Sprintf("'%s'!A1", title)
	if err := e.api.UpdateValues(ctx, e.spreadsheetID, rng, consolidatedRows(c)); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Consolidated table written to Google Sheets",
		"sheets_range", rng,
		"year", c.Year)
	return nil
}

func (e *Exporter) ensureSheet(ctx context.Context, title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.known[title] {
		return nil
	}

	titles, err := e.api.SheetTitles(ctx, e.spreadsheetID)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}
	if !slices.Contains(titles, title) {
		if err := e.api.AddSheet(ctx, e.spreadsheetID, title); err != nil {
			return fmt.Errorf("add sheet %q: %w", title, err)
		}
		slog.InfoContext(ctx, "Created sheet", "title", title)
	}
	e.known[title] = true
	return nil
}

// consolidatedRows renders the table: header, twelve months, totals. Amounts
// are numbers in currency units so that the sheet can format them.
func consolidatedRows(c report.Consolidated) [][]any {
	rows := make([][]any, 0, len(c.Months)+2)
	rows = append(rows, consolidatedHeader)
	for _, m := range c.Months {
		rows = append(rows, consolidatedRow(m))
	}
	return append(rows, consolidatedRow(c.Totals))
}

func consolidatedRow(r report.ConsolidatedRow) []any {
	return []any{
		r.Label,
		r.Income.Float(),
		r.Expenses.Float(),
		r.Investments.Float(),
		r.Balance.Float(),
		r.FinalBalance.Float(),
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
// A zero year (every year aggregated) uses "Todos".
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	if year == report.AllYears {
		return "Todos " + base
	}
	return fmt.Sprintf("%d %s", year, base)
}

// serviceAPI implements sheetsAPI on top of the generated client.
type serviceAPI struct {
	svc *gsheet.Service
}

func (a *serviceAPI) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	ss, err := a.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (a *serviceAPI) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	_, err := a.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

func (a *serviceAPI) UpdateValues(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := a.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}
