package pipeline

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ismparse/internal"
	"ismparse/internal/config"
)

func TestExtractMonthYear(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"keyword after date", "Manufacturing PMI® at 49.1%; January 2024 ISM® Manufacturing PMI® Report On Business®", "January 2024"},
		{"keyword before date", "ISM Services PMI Report On Business for Dec. 2023 shows growth", "December 2023"},
		{"at a glance", "intro text\nSERVICES AT A GLANCE\nSept 2023\nrows", "September 2023"},
		{"header area", "Monthly survey\nMarch 2022\nbody", "March 2022"},
		{"most frequent", longPrefix() + "June 2021 ... July 2021 ... July 2021", "July 2021"},
		{"none", "no dates here at all", internal.UnknownMonthYear},
		{"empty", "", internal.UnknownMonthYear},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractMonthYear(tc.text); got != tc.want {
				t.Fatalf("ExtractMonthYear = %q, want %q", got, tc.want)
			}
		})
	}
}

func longPrefix() string {
	b := make([]byte, headerAreaSize+10)
	for i := range b {
		b[i] = 'x'
	}
	return string(b) + " "
}

func TestTableExtractorHeadline(t *testing.T) {
	ex := NewTableExtractor(config.DefaultProvider())
	frag := ex.Extract(Input{Text: "Manufacturing PMI® at 52.8 percent, Growing", ReportType: internal.Manufacturing})

	got, ok := frag.Indices["Manufacturing PMI"]
	if !ok {
		t.Fatalf("headline missing: %+v", frag.Indices)
	}
	if diff := cmp.Diff(internal.RawIndex{Value: "52.8", Direction: "Growing"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if len(frag.Indices) != 1 {
		t.Fatalf("missing indices must be omitted: %+v", frag.Indices)
	}

	r := NewPipeline(config.DefaultProvider(), nil).Run(MergeFragments(internal.Manufacturing, []Fragment{frag}), internal.Manufacturing)
	if v := r.Indices["Manufacturing PMI"]; v.Value == nil || *v.Value != 52.8 || v.Direction != internal.Growing {
		t.Fatalf("coerced headline = %+v", v)
	}
}

func TestTableExtractorMasksLongerNames(t *testing.T) {
	ex := NewTableExtractor(config.DefaultProvider())

	frag := ex.Extract(Input{Text: "Customers’ Inventories registered 43.7 percent, Too Low.", ReportType: internal.Manufacturing})
	if _, ok := frag.Indices["Inventories"]; ok {
		t.Fatalf("Inventories matched inside Customers' Inventories: %+v", frag.Indices)
	}
	if got := frag.Indices["Customers' Inventories"]; got.Value != "43.7" || got.Direction != "Too Low" {
		t.Fatalf("unexpected customers' inventories: %+v", got)
	}

	frag = ex.Extract(Input{Text: "Customers' Inventories registered 43.7 percent, Too Low. Inventories registered 46.2 percent, Contracting.", ReportType: internal.Manufacturing})
	if got := frag.Indices["Inventories"]; got.Value != "46.2" || got.Direction != "Contracting" {
		t.Fatalf("unexpected inventories: %+v", got)
	}
}

func TestTableExtractorGlanceRows(t *testing.T) {
	ex := NewTableExtractor(config.DefaultProvider())
	frag := ex.Extract(Input{Text: fixture(t, "manufacturing.txt"), ReportType: internal.Manufacturing})

	if len(frag.Indices) != 11 {
		t.Fatalf("expected 11 indices, got %d: %+v", len(frag.Indices), frag.Indices)
	}
	want := map[string]internal.RawIndex{
		"Manufacturing PMI":      {Value: "49.1", Direction: "Contracting"},
		"Supplier Deliveries":    {Value: "49.1", Direction: "Faster"},
		"Inventories":            {Value: "46.2", Direction: "Contracting"},
		"Customers' Inventories": {Value: "43.7", Direction: "Too Low"},
		"Prices":                 {Value: "52.9", Direction: "Increasing"},
	}
	for name, w := range want {
		if diff := cmp.Diff(w, frag.Indices[name]); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestTableExtractorAmbiguousPicksRicherType(t *testing.T) {
	ex := NewTableExtractor(config.DefaultProvider())
	frag := ex.Extract(Input{Text: fixture(t, "services.txt"), ReportType: internal.Manufacturing, Ambiguous: true})

	if frag.ReportType != internal.Services {
		t.Fatalf("expected switch to services, got %q", frag.ReportType)
	}
	if got := frag.Indices["Services PMI"]; got.Value != "53.4" {
		t.Fatalf("unexpected headline: %+v", got)
	}
}

func TestIndustryExtractorFixture(t *testing.T) {
	ex := NewIndustryExtractor(config.DefaultProvider())
	frag := ex.Extract(Input{Text: fixture(t, "manufacturing.txt"), ReportType: internal.Manufacturing})

	cases := []struct {
		index, category string
		want            []string
	}{
		{"Manufacturing PMI", "Growing", []string{"Primary Metals", "Paper Products", "Chemical Products", "Food, Beverage & Tobacco Products", "Miscellaneous Manufacturing", "Computer & Electronic Products"}},
		{"New Orders", "Growing", []string{"Primary Metals", "Paper Products", "Chemical Products", "Computer & Electronic Products"}},
		{"New Orders", "Declining", []string{"Furniture & Related Products", "Textile Mills", "Wood Products", "Machinery"}},
		{"Production", "Declining", []string{"Textile Mills", "Wood Products", "Fabricated Metal Products"}},
		{"Supplier Deliveries", "Slower", []string{"Primary Metals", "Chemical Products"}},
		{"Supplier Deliveries", "Faster", []string{"Wood Products", "Machinery", "Transportation Equipment"}},
		{"Customers' Inventories", "Too High", []string{"Chemical Products"}},
		{"Customers' Inventories", "Too Low", []string{"Paper Products", "Machinery"}},
		{"Prices", "Increasing", []string{"Primary Metals", "Paper Products"}},
		{"Prices", "Decreasing", []string{"Chemical Products"}},
		{"Backlog of Orders", "Growing", []string{"Primary Metals", "Paper Products", "Machinery"}},
		{"Backlog of Orders", "Declining", []string{"Textile Mills", "Wood Products", "Furniture & Related Products"}},
		{"Employment", "Growing", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.index+"/"+tc.category, func(t *testing.T) {
			got, ok := frag.Industries[tc.index][tc.category]
			if !ok {
				t.Fatalf("category missing: %+v", frag.Industries[tc.index])
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if len(frag.Industries["Manufacturing PMI"]["Declining"]) != 10 {
		t.Fatalf("expected 10 contracting industries: %v", frag.Industries["Manufacturing PMI"]["Declining"])
	}
	if summary := frag.IndexSummaries["New Orders"]; !strings.HasPrefix(summary, "ISM®'s New Orders Index registered 52.5 percent") {
		t.Fatalf("unexpected new orders summary: %q", summary)
	}
}

func TestBuildCategoryPatternAliases(t *testing.T) {
	cases := []struct {
		index, category, text string
		want                  []string
	}{
		{"Backlog of Orders", "Growing", "The four industries reporting higher backlogs in January are: Primary Metals; and Machinery.", []string{"Primary Metals", "Machinery"}},
		{"Backlog of Orders", "Declining", "The two industries reporting lower order backlogs in January are: Textile Mills; and Wood Products.", []string{"Textile Mills", "Wood Products"}},
		{"New Export Orders", "Growing", "The three industries reporting growth in export orders in January are: Paper Products; and Machinery.", []string{"Paper Products", "Machinery"}},
		{"Inventories", "Lower", "The six industries reporting lower inventory levels in January are: Textile Mills; and Primary Metals.", []string{"Textile Mills", "Primary Metals"}},
	}
	for _, tc := range cases {
		t.Run(tc.index+"/"+tc.category, func(t *testing.T) {
			m := BuildCategoryPattern(tc.index, tc.category).FindStringSubmatch(tc.text)
			if m == nil {
				t.Fatalf("no match in %q", tc.text)
			}
			if diff := cmp.Diff(tc.want, ParseIndustryList(m[1])); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIndustryExtractorNoText(t *testing.T) {
	ex := NewIndustryExtractor(config.DefaultProvider())
	if frag := ex.Extract(Input{Text: "  ", ReportType: internal.Services}); !frag.Empty() {
		t.Fatalf("expected empty fragment: %+v", frag)
	}
}

func TestBuildCategoryPatternUnknownCategory(t *testing.T) {
	re := BuildCategoryPattern("New Orders", "Steady")
	m := re.FindStringSubmatch("The two industries reporting steady new orders in May are: Mining; and Utilities.")
	if m == nil {
		t.Fatalf("no match for unlisted category")
	}
	if diff := cmp.Diff([]string{"Mining", "Utilities"}, ParseIndustryList(m[1])); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
