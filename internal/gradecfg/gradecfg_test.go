package gradecfg

import "testing"

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.MaxQuestions(); got != 60 {
		t.Fatalf("MaxQuestions=%d, want 60", got)
	}
	if got := cfg.RichestGrade().Label; got != "9º ANO" {
		t.Fatalf("RichestGrade=%q, want 9º ANO", got)
	}
	for _, ord := range []int{1, 2, 3, 4} {
		if cfg.TierLabel(ord) == "" {
			t.Fatalf("missing tier label for ordinal %d", ord)
		}
	}
}

func TestByLabel(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "exact", in: "2º ANO", want: "2º ANO"},
		{name: "lowercase", in: "2º ano", want: "2º ANO"},
		{name: "plain_number", in: "2", want: "2º ANO"},
		{name: "spelled_out", in: "segundo ano", want: "2º ANO"},
		{name: "no_ordinal_mark", in: "2o ano", want: "2º ANO"},
		{name: "ninth", in: "9 ANO", want: "9º ANO"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, ok := cfg.ByLabel(tc.in)
			if !ok {
				t.Fatalf("ByLabel(%q) not found", tc.in)
			}
			if g.Label != tc.want {
				t.Fatalf("ByLabel(%q)=%q, want %q", tc.in, g.Label, tc.want)
			}
		})
	}
	if _, ok := cfg.ByLabel("7º ano"); ok {
		t.Fatal("ByLabel should not resolve an unconfigured grade")
	}
}

func TestTierFor(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g, ok := cfg.ByLabel("2º ANO")
	if !ok {
		t.Fatal("2º ANO not configured")
	}
	lp := g.Discipline("LP")
	if lp == nil {
		t.Fatal("2º ANO has no LP discipline")
	}
	if lp.Questions() != 14 {
		t.Fatalf("LP questions=%d, want 14", lp.Questions())
	}
	cases := []struct {
		name    string
		correct int
		want    int // 0 means nil
	}{
		{name: "zero_lowest_band", correct: 0, want: 1},
		{name: "upper_edge_band1", correct: 3, want: 1},
		{name: "lower_edge_band2", correct: 4, want: 2},
		{name: "upper_edge_band3", correct: 11, want: 3},
		{name: "lower_edge_band4", correct: 12, want: 4},
		{name: "max", correct: 14, want: 4},
		{name: "past_max", correct: 15, want: 0},
		{name: "negative", correct: -1, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := lp.TierFor(tc.correct)
			if tc.want == 0 {
				if got != nil {
					t.Fatalf("TierFor(%d)=%d, want nil", tc.correct, *got)
				}
				return
			}
			if got == nil || *got != tc.want {
				t.Fatalf("TierFor(%d)=%v, want %d", tc.correct, got, tc.want)
			}
		})
	}
}
