package classifier

import (
	"reflect"
	"testing"
)

func TestCleanText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Great smell<br />arrived fast", "Great smell arrived fast"},
		{"one<br>two<BR/>three", "one two three"},
		{"  lots   of\n\n\twhitespace  ", "lots of whitespace"},
		{"<br/><br/>", ""},
		{"already clean", "already clean"},
		{"trailing break<br   />", "trailing break"},
	}
	for _, c := range cases {
		if got := CleanText(c.in); got != c.want {
			t.Errorf("CleanText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseLabels(t *testing.T) {
	got, err := ParseLabels(" Price & Value ;Service")
	if err != nil {
		t.Fatalf("ParseLabels: %v", err)
	}
	if want := []string{"Price & Value", "Service"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLabels = %v, want %v", got, want)
	}
}

func TestParseLabels_Rejects(t *testing.T) {
	for _, raw := range []string{"", "a;;b", "a;b;a", " ; "} {
		if _, err := ParseLabels(raw); err == nil {
			t.Errorf("ParseLabels(%q) expected error", raw)
		}
	}
}

func TestDefaultLabels(t *testing.T) {
	if len(DefaultLabels) != 6 {
		t.Fatalf("len(DefaultLabels) = %d, want 6", len(DefaultLabels))
	}
	if DefaultLabels[0] != "Quality & Effectiveness" || DefaultLabels[5] != "Service" {
		t.Errorf("DefaultLabels order changed: %v", DefaultLabels)
	}
}

func TestValidate(t *testing.T) {
	labels := []string{"A", "B"}
	texts := []string{"x"}

	ok := []Result{{Labels: []string{"B", "A"}, Scores: []float64{0.9, 0.1}}}
	if err := validate(ok, texts, labels); err != nil {
		t.Errorf("valid result rejected: %v", err)
	}

	bad := map[string][]Result{
		"count":         {},
		"length":        {{Labels: []string{"A"}, Scores: []float64{0.1, 0.2}}},
		"empty":         {{}},
		"unknown label": {{Labels: []string{"Z"}, Scores: []float64{0.5}}},
		"score range":   {{Labels: []string{"A"}, Scores: []float64{1.5}}},
	}
	for name, results := range bad {
		if err := validate(results, texts, labels); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
