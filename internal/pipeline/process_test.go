package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"ismparse/internal"
	"ismparse/internal/config"
	"ismparse/internal/storage"
)

type stubCorrector struct {
	candidate internal.Draft
	err       error
	block     bool
	prompts   []string
}

func (s *stubCorrector) Correct(ctx context.Context, prompt string, draft internal.Draft) (internal.Draft, error) {
	s.prompts = append(s.prompts, prompt)
	if s.block {
		<-ctx.Done()
		return internal.Draft{}, ctx.Err()
	}
	if s.err != nil {
		return internal.Draft{}, s.err
	}
	return s.candidate, nil
}

func TestProcessEmptyInput(t *testing.T) {
	svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin)
	for _, text := range []string{"", "   \n\t "} {
		r := svc.Process(context.Background(), text, "empty")
		if r == nil {
			t.Fatalf("nil report for %q", text)
		}
		if r.ReportType != internal.Manufacturing || r.MonthYear != internal.UnknownMonthYear {
			t.Fatalf("unexpected header: %s %s", r.ReportType, r.MonthYear)
		}
		if len(r.Indices) != 0 || len(r.Industries) != 0 || len(r.IndexSummaries) != 0 {
			t.Fatalf("expected empty maps: %+v", r)
		}
	}
}

func TestProcessManufacturingFixture(t *testing.T) {
	svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin)
	r := svc.Process(context.Background(), fixture(t, "manufacturing.txt"), "manufacturing.txt")

	if r.MonthYear != "January 2024" || r.ReportType != internal.Manufacturing {
		t.Fatalf("unexpected header: %s %s", r.MonthYear, r.ReportType)
	}
	if r.TypeCorrected {
		t.Fatalf("type must not be corrected")
	}

	values := map[string]float64{
		"Manufacturing PMI":      49.1,
		"New Orders":             52.5,
		"Production":             50.4,
		"Supplier Deliveries":    49.1,
		"Customers' Inventories": 43.7,
		"Imports":                46.0,
	}
	for name, want := range values {
		if got := value(t, r, name); got != want {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
	directions := map[string]internal.Direction{
		"Manufacturing PMI":      internal.Contracting,
		"New Orders":             internal.Growing,
		"Supplier Deliveries":    internal.Faster,
		"Customers' Inventories": internal.TooLow,
		"Prices":                 internal.Growing,
	}
	for name, want := range directions {
		if got := r.Indices[name].Direction; got != want {
			t.Fatalf("%s direction = %s, want %s", name, got, want)
		}
	}
	if r.Indices["Manufacturing PMI"].Synthesized {
		t.Fatalf("reported headline must not be synthesized")
	}

	want := []string{"Primary Metals", "Paper Products", "Chemical Products", "Computer & Electronic Products"}
	if diff := cmp.Diff(want, r.Industries["New Orders"]["Growing"]); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if got := len(r.Industries["Manufacturing PMI"]["Declining"]); got != 10 {
		t.Fatalf("expected 10 contracting industries, got %d", got)
	}
	for _, m := range r.Matches {
		if m.Method != internal.MatchExact || m.Confidence != 1 {
			t.Fatalf("fixture names are canonical, got %+v", m)
		}
	}
	if containsWarning(r, "not in canonical list") {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

func TestProcessServicesFixture(t *testing.T) {
	svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin)
	r := svc.Process(context.Background(), fixture(t, "services.txt"), "services.txt")

	if r.MonthYear != "January 2024" || r.ReportType != internal.Services {
		t.Fatalf("unexpected header: %s %s", r.MonthYear, r.ReportType)
	}
	if v := value(t, r, "Services PMI"); v != 53.4 {
		t.Fatalf("Services PMI = %v", v)
	}
	if v := value(t, r, "Business Activity"); v != 55.8 {
		t.Fatalf("Business Activity = %v", v)
	}
	if got := r.Indices["Supplier Deliveries"].Direction; got != internal.Slowing {
		t.Fatalf("Supplier Deliveries direction = %s", got)
	}

	cases := []struct {
		index, category string
		want            []string
	}{
		{"Services PMI", "Growing", []string{"Retail Trade", "Transportation & Warehousing", "Health Care & Social Assistance", "Utilities"}},
		{"Services PMI", "Declining", []string{"Mining", "Educational Services", "Other Services"}},
		{"Inventory Sentiment", "Too High", []string{"Mining", "Utilities", "Information"}},
		{"Inventory Sentiment", "Too Low", []string{"Construction", "Wholesale Trade"}},
	}
	for _, tc := range cases {
		t.Run(tc.index+"/"+tc.category, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, r.Industries[tc.index][tc.category]); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcessConcurrentDocuments(t *testing.T) {
	svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin)
	docs := []struct {
		name     string
		text     string
		headline string
		want     float64
	}{
		{"manufacturing.txt", fixture(t, "manufacturing.txt"), "Manufacturing PMI", 49.1},
		{"services.txt", fixture(t, "services.txt"), "Services PMI", 53.4},
	}

	var wg sync.WaitGroup
	failures := make(chan string, 16)
	for i := 0; i < 16; i++ {
		doc := docs[i%len(docs)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := svc.Process(context.Background(), doc.text, doc.name)
			v, ok := r.Indices[doc.headline]
			if !ok || v.Value == nil || *v.Value != doc.want {
				failures <- doc.name
			}
		}()
	}
	wg.Wait()
	close(failures)
	for name := range failures {
		t.Fatalf("%s: wrong headline under concurrent processing", name)
	}
}

func TestProcessCorrector(t *testing.T) {
	text := fixture(t, "manufacturing.txt")

	t.Run("error keeps draft", func(t *testing.T) {
		c := &stubCorrector{err: errors.New("upstream down")}
		svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin, WithCorrector(c, time.Second))
		r := svc.Process(context.Background(), text, "doc")
		if v := value(t, r, "Manufacturing PMI"); v != 49.1 {
			t.Fatalf("draft not kept: %v", v)
		}
		if len(c.prompts) != 1 || !strings.Contains(c.prompts[0], "may contain mistakes") || !strings.Contains(c.prompts[0], "Report text:") {
			t.Fatalf("expected a correction prompt, got %q", c.prompts)
		}
	})

	t.Run("timeout keeps draft", func(t *testing.T) {
		c := &stubCorrector{block: true}
		svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin, WithCorrector(c, 20*time.Millisecond))
		start := time.Now()
		r := svc.Process(context.Background(), text, "doc")
		if time.Since(start) > 5*time.Second {
			t.Fatalf("corrector timeout not applied")
		}
		if v := value(t, r, "New Orders"); v != 52.5 {
			t.Fatalf("draft not kept: %v", v)
		}
	})

	t.Run("candidate replaces draft", func(t *testing.T) {
		c := &stubCorrector{candidate: internal.Draft{
			MonthYear:  "January 2024",
			ReportType: "Manufacturing",
			Indices:    map[string]internal.RawIndex{"Manufacturing PMI": {Value: 48.7, Direction: "contracting"}},
		}}
		svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin, WithCorrector(c, time.Second))
		r := svc.Process(context.Background(), text, "doc")
		if v := value(t, r, "Manufacturing PMI"); v != 48.7 {
			t.Fatalf("candidate not applied: %v", v)
		}
		if len(r.Indices) != 1 {
			t.Fatalf("expected candidate indices only: %+v", r.Indices)
		}
	})

	t.Run("candidate without indices is rejected", func(t *testing.T) {
		c := &stubCorrector{candidate: internal.Draft{ReportType: "Manufacturing"}}
		svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin, WithCorrector(c, time.Second))
		r := svc.Process(context.Background(), text, "doc")
		if len(r.Indices) != 11 {
			t.Fatalf("draft not kept: %+v", r.Indices)
		}
	})

	t.Run("empty draft asks for extraction", func(t *testing.T) {
		c := &stubCorrector{err: errors.New("no answer")}
		svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin, WithCorrector(c, time.Second))
		svc.Process(context.Background(), "Purchasing managers at factories were cautious this month.", "doc")
		if len(c.prompts) != 1 || !strings.Contains(c.prompts[0], "Do not invent values") {
			t.Fatalf("expected an extraction prompt, got %q", c.prompts)
		}
	})
}

func TestProcessDocumentPersistsAndExports(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "ism.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc := NewProcessingService(config.DefaultProvider(), DefaultAmbiguityMargin, WithSink(db))
	res, err := svc.ProcessDocument(ctx, fixture(t, "manufacturing.txt"), "manufacturing.txt")
	if err != nil {
		t.Fatalf("process document: %v", err)
	}
	if res.RunID == "" || res.Report == nil {
		t.Fatalf("incomplete result: %+v", res)
	}

	rec, err := db.LoadReport(ctx, "January 2024", "Manufacturing")
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if rec == nil {
		t.Fatalf("report not stored")
	}
	if diff := cmp.Diff(res.Report.Flatten(), *rec); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}

	runs, err := db.ListRuns(ctx, 5)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != res.RunID || runs[0].Counts["indices"] != 11 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	out := filepath.Join(dir, "out", "report.xlsx")
	if err := ExportReportToXLSX(res.Report, out); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetIndices)
	if err != nil {
		t.Fatalf("read indices sheet: %v", err)
	}
	if len(rows) != 12 {
		t.Fatalf("expected header plus 11 rows, got %d", len(rows))
	}
	if diff := cmp.Diff([]string{"month_year", "report_type", "index_name", "value", "direction"}, rows[0]); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	industries, err := f.GetRows(sheetIndustries)
	if err != nil {
		t.Fatalf("read industries sheet: %v", err)
	}
	if len(industries) != len(res.Report.Flatten().Industries)+1 {
		t.Fatalf("industries rows = %d", len(industries))
	}
	if _, err := f.GetRows(sheetSummaries); err != nil {
		t.Fatalf("summaries sheet missing: %v", err)
	}
}
