package pipeline

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseIndustryListRecoversJoinedNames(t *testing.T) {
	names := []string{
		"Primary Metals",
		"Food, Beverage & Tobacco Products",
		"Chemical Products",
		"Customers' Goods",
		"Printing & Related Support Activities",
	}
	for n := 2; n <= len(names); n++ {
		got := ParseIndustryList(strings.Join(names[:n], "; "))
		if diff := cmp.Diff(names[:n], got); diff != "" {
			t.Fatalf("n=%d mismatch (-want +got):\n%s", n, diff)
		}
	}
}

func TestParseIndustryList(t *testing.T) {
	cases := []struct {
		name string
		span string
		want []string
	}{
		{
			name: "framing and conjunction",
			span: "in the following order, are: Paper Products; Machinery; and Wood Products.",
			want: []string{"Paper Products", "Machinery", "Wood Products"},
		},
		{
			name: "comma separated",
			span: "are: Mining, Utilities, and Construction",
			want: []string{"Mining", "Utilities", "Construction"},
		},
		{
			name: "comma list without serial comma",
			span: "are: Textile Mills, Paper Products and Wood Products.",
			want: []string{"Textile Mills", "Paper Products", "Wood Products"},
		},
		{
			name: "single item keeps its conjunction",
			span: "are: Arts and Recreation",
			want: []string{"Arts and Recreation"},
		},
		{
			name: "footnotes and asterisks",
			span: "Textile Mills (1); Machinery*; - the Wood Products (2).",
			want: []string{"Textile Mills", "Machinery", "Wood Products"},
		},
		{
			name: "artifacts and short items",
			span: "none; Mining; ab; n/a",
			want: []string{"Mining"},
		},
		{
			name: "case-insensitive duplicates",
			span: "Chemical Products; chemical products; CHEMICAL PRODUCTS; Machinery",
			want: []string{"Chemical Products", "Machinery"},
		},
		{
			name: "empty",
			span: "   ",
			want: []string{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, ParseIndustryList(tc.span)); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
