package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"ismparse/internal"
	"ismparse/internal/util"
)

func TestSaveAndLoadReport(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	rec := internal.FlatRecord{
		MonthYear:  "January 2024",
		ReportType: "Manufacturing",
		Indices: []internal.FlatIndex{
			{IndexName: "Manufacturing PMI", Value: util.FloatPtr(49.1), Direction: "Contracting"},
			{IndexName: "Prices", Value: nil, Direction: "Unknown"},
		},
		Industries: []internal.FlatIndustry{
			{IndexName: "New Orders", Category: "Growing", Industry: "Chemical Products"},
			{IndexName: "New Orders", Category: "Growing", Industry: "Paper Products"},
		},
	}
	if err := db.SaveReport(ctx, uuid.NewString(), "jan.pdf", rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.LoadReport(ctx, "January 2024", "Manufacturing")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatalf("report not found")
	}
	if diff := cmp.Diff(rec, *got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	rec.Indices = rec.Indices[:1]
	rec.Industries = nil
	if err := db.SaveReport(ctx, uuid.NewString(), "jan-v2.pdf", rec); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err = db.LoadReport(ctx, "January 2024", "Manufacturing")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.Indices) != 1 || len(got.Industries) != 0 {
		t.Fatalf("resave did not replace rows: %+v", got)
	}
}

func TestSaveReportKeepsUnknownMonthsApart(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	unknown := internal.FlatRecord{MonthYear: internal.UnknownMonthYear, ReportType: "Services"}
	known := internal.FlatRecord{MonthYear: "January 2024", ReportType: "Services"}
	saves := []struct {
		docRef string
		rec    internal.FlatRecord
	}{
		{docRef: "a.pdf", rec: unknown},
		{docRef: "b.pdf", rec: unknown},
		{docRef: "a.pdf", rec: unknown},
		{docRef: "", rec: unknown},
		{docRef: "jan.pdf", rec: known},
		{docRef: "jan-v2.pdf", rec: known},
	}
	for _, s := range saves {
		if err := db.SaveReport(ctx, uuid.NewString(), s.docRef, s.rec); err != nil {
			t.Fatalf("save %s: %v", s.docRef, err)
		}
	}

	count := func(monthYear string) int {
		var n int
		if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE monthYear = ?`, monthYear).Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}
	if n := count(internal.UnknownMonthYear); n != 3 {
		t.Fatalf("unknown-month rows = %d, want 3", n)
	}
	if n := count("January 2024"); n != 1 {
		t.Fatalf("known-month rows = %d, want 1", n)
	}
	got, err := db.LoadReport(ctx, internal.UnknownMonthYear, "Services")
	if err != nil || got == nil {
		t.Fatalf("load unknown: %v, %v", got, err)
	}
}

func TestLoadReportMissing(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	got, err := db.LoadReport(context.Background(), "March 2020", "Services")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestInsertAndListRuns(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.InsertRun(ctx, "run-1", "a.txt", map[string]float64{"totalMs": 3}, map[string]int{"indices": 11}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	runs, err := db.ListRuns(ctx, 5)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-1" || runs[0].Counts["indices"] != 11 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}
