package report

import (
	"encoding/json"
	"strings"
	"testing"
)

var allSeverities = []Severity{Ok, Info, Warning, Critical}

func TestSeverity_Ordering(t *testing.T) {
	for i := 1; i < len(allSeverities); i++ {
		if !(allSeverities[i-1] < allSeverities[i]) {
			t.Errorf("%v should be below %v", allSeverities[i-1], allSeverities[i])
		}
	}
}

func TestMax_Properties(t *testing.T) {
	for _, a := range allSeverities {
		if Max(a, a) != a {
			t.Errorf("Max(%v, %v) not idempotent", a, a)
		}
		for _, b := range allSeverities {
			if Max(a, b) != Max(b, a) {
				t.Errorf("Max(%v, %v) not commutative", a, b)
			}
			if Max(a, b) < a || Max(a, b) < b {
				t.Errorf("Max(%v, %v) = %v is below an input", a, b, Max(a, b))
			}
			for _, c := range allSeverities {
				if Max(Max(a, b), c) != Max(a, Max(b, c)) {
					t.Errorf("Max not associative for %v %v %v", a, b, c)
				}
			}
		}
	}
}

func TestSeverity_TextRoundTrip(t *testing.T) {
	for _, s := range allSeverities {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", s, err)
		}
		var got Severity
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", b, err)
		}
		if got != s {
			t.Errorf("round trip = %v, want %v", got, s)
		}
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestFinalize_Empty(t *testing.T) {
	r := New("cpu", "nothing to see")
	r.Finalize()
	if r.OverallSeverity != Ok {
		t.Errorf("OverallSeverity = %v, want ok", r.OverallSeverity)
	}
}

func TestFinalize_MaxOfFindings(t *testing.T) {
	sequences := [][]Severity{
		{Info},
		{Info, Warning, Ok},
		{Critical, Info},
		{Ok, Ok},
		{Warning, Warning, Info, Critical, Ok},
	}
	for _, seq := range sequences {
		r := New("test", "summary")
		want := Ok
		for _, s := range seq {
			r.AddFinding(Finding{Severity: s, Category: "c", Message: "m"})
			want = Max(want, s)
		}
		r.Finalize()
		if r.OverallSeverity != want {
			t.Errorf("findings %v: OverallSeverity = %v, want %v", seq, r.OverallSeverity, want)
		}
		if !r.Finalized() {
			t.Error("Finalized() = false after Finalize")
		}
	}
}

func TestAppendAfterFinalize_Strict(t *testing.T) {
	orig := Strict
	Strict = true
	defer func() { Strict = orig }()

	r := New("test", "summary")
	r.Finalize()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when appending after Finalize in strict mode")
		}
	}()
	r.AddFinding(Finding{Severity: Warning, Category: "c", Message: "late"})
}

func TestAppendAfterFinalize_Lenient(t *testing.T) {
	orig := Strict
	Strict = false
	defer func() { Strict = orig }()

	r := New("test", "summary")
	r.Finalize()
	r.AddFinding(Finding{Severity: Critical, Category: "c", Message: "late"})
	if r.Finalized() {
		t.Error("report should be reopened by a late append")
	}
	r.Finalize()
	if r.OverallSeverity != Critical {
		t.Errorf("OverallSeverity = %v, want critical after re-derive", r.OverallSeverity)
	}
}

func TestThreshold_Boundaries(t *testing.T) {
	th := Threshold{Warning: 80, Critical: 95}
	cases := []struct {
		v    float64
		want Severity
	}{
		{0, Ok},
		{79.999, Ok},
		{80, Warning},
		{94.9, Warning},
		{95, Critical},
		{1000, Critical},
	}
	for _, tc := range cases {
		if got := th.Classify(tc.v); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestThreshold_Monotonic(t *testing.T) {
	th := Threshold{Warning: 75, Critical: 85}
	prev := Ok
	for v := -10.0; v <= 120; v += 0.5 {
		got := th.Classify(v)
		if got < prev {
			t.Fatalf("Classify(%v) = %v dropped below %v", v, got, prev)
		}
		prev = got
	}
}

func TestThreshold_Validate(t *testing.T) {
	if err := (Threshold{Warning: 90, Critical: 80}).Validate(); err == nil {
		t.Error("expected error when warning >= critical")
	}
	if err := (Threshold{Warning: 80, Critical: 90}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMetric_Severity(t *testing.T) {
	th := &Threshold{Warning: 80, Critical: 95}
	m := Metric{Name: "util", Value: Float(92), Unit: "%", Threshold: th}
	sev, ok := m.Severity()
	if !ok || sev != Warning {
		t.Errorf("Severity() = %v, %v; want warning, true", sev, ok)
	}

	m = Metric{Name: "name", Value: Text("RTX"), Threshold: th}
	if _, ok := m.Severity(); ok {
		t.Error("text metric should not classify")
	}

	m = Metric{Name: "util", Value: Int(99)}
	if _, ok := m.Severity(); ok {
		t.Error("metric without threshold should not classify")
	}
}

func TestValue_JSONCarriesKind(t *testing.T) {
	m := Metric{Name: "cores", Value: Int(8)}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"integer"`) {
		t.Errorf("expected integer kind discriminator, got %s", data)
	}

	// 2.0 as float must not collapse into an integer on decode.
	data, err = json.Marshal(Float(2))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.Kind() != KindFloat {
		t.Errorf("Kind = %v, want float", v.Kind())
	}

	data, err = json.Marshal(List())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"value":[]`) {
		t.Errorf("empty list should encode as [], got %s", data)
	}

	if err := json.Unmarshal([]byte(`{"kind":"complex","value":1}`), &v); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRecommendation_CommandLine(t *testing.T) {
	rec := Recommendation{Command: []string{"systemctl", "disable", "foo bar.service"}}
	got := rec.CommandLine()
	want := `systemctl disable "foo bar.service"`
	if got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}

func TestByPriority_StableOrder(t *testing.T) {
	r := New("test", "summary")
	r.AddRecommendation(Recommendation{Priority: 3, Action: "a"})
	r.AddRecommendation(Recommendation{Priority: 1, Action: "b"})
	r.AddRecommendation(Recommendation{Priority: 3, Action: "c"})
	r.AddRecommendation(Recommendation{Priority: 0, Action: "d"})

	got := r.ByPriority()
	order := make([]string, len(got))
	for i, rec := range got {
		order[i] = rec.Action
	}
	if strings.Join(order, "") != "bdac" {
		t.Errorf("order = %v, want [b d a c]", order)
	}
	if r.Recommendations[0].Action != "a" {
		t.Error("ByPriority must not reorder the report itself")
	}
}
