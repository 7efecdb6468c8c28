package worker

import (
	"context"
	"errors"
	"testing"

	"carteira/internal/amqp"
)

type fakeExporter struct {
	years  []int
	all    int
	err    error
	allErr error
}

func (f *fakeExporter) ExportYear(_ context.Context, year int) error {
	f.years = append(f.years, year)
	return f.err
}

func (f *fakeExporter) ExportAll(context.Context) (int, error) {
	f.all++
	return 2, f.allErr
}

func TestExportWorker_HandleDatasetChanged(t *testing.T) {
	tests := []struct {
		name      string
		msg       *amqp.DatasetChangedMessage
		exporter  *fakeExporter
		wantYears []int
		wantAll   int
		wantErr   bool
	}{
		{
			name:      "dated change exports its year",
			msg:       amqp.NewDatasetChangedMessage(amqp.ReasonTransactionCreated, "tx-1", 2024),
			exporter:  &fakeExporter{},
			wantYears: []int{2024},
		},
		{
			name:     "import exports every year",
			msg:      amqp.NewDatasetChangedMessage(amqp.ReasonImport, "", 0),
			exporter: &fakeExporter{},
			wantAll:  1,
		},
		{
			name:      "export failure is returned for requeue",
			msg:       amqp.NewDatasetChangedMessage(amqp.ReasonTransactionCreated, "tx-2", 2023),
			exporter:  &fakeExporter{err: errors.New("sheets unavailable")},
			wantYears: []int{2023},
			wantErr:   true,
		},
		{
			name:     "export all failure is returned",
			msg:      amqp.NewDatasetChangedMessage(amqp.ReasonImport, "", 0),
			exporter: &fakeExporter{allErr: errors.New("sheets unavailable")},
			wantAll:  1,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewExportWorker(tt.exporter)
			err := w.HandleDatasetChanged(context.Background(), tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleDatasetChanged() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(tt.exporter.years) != len(tt.wantYears) {
				t.Fatalf("exported years = %v, want %v", tt.exporter.years, tt.wantYears)
			}
			for i := range tt.wantYears {
				if tt.exporter.years[i] != tt.wantYears[i] {
					t.Errorf("exported years = %v, want %v", tt.exporter.years, tt.wantYears)
				}
			}
			if tt.exporter.all != tt.wantAll {
				t.Errorf("ExportAll calls = %d, want %d", tt.exporter.all, tt.wantAll)
			}
		})
	}
}
