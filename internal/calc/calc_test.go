package calc

import (
	"testing"

	"github.com/avaliaedu/avalia-backend/internal/gradecfg"
	"github.com/avaliaedu/avalia-backend/internal/ingest"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

func grade(t *testing.T, label string) *gradecfg.Grade {
	t.Helper()
	cfg, err := gradecfg.Load()
	if err != nil {
		t.Fatalf("gradecfg.Load: %v", err)
	}
	g, ok := cfg.ByLabel(label)
	if !ok {
		t.Fatalf("grade %q not configured", label)
	}
	return g
}

func row(fields map[ingest.Field]string, questions map[int]string, productions map[int]string) ingest.Row {
	if fields == nil {
		fields = map[ingest.Field]string{}
	}
	if questions == nil {
		questions = map[int]string{}
	}
	if productions == nil {
		productions = map[int]string{}
	}
	return ingest.Row{Index: 2, Fields: fields, Questions: questions, Productions: productions}
}

func TestAttendanceInference(t *testing.T) {
	g := grade(t, "2º ANO")

	t.Run("all_zero_scores_is_no_data", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldScoreLP:   "0",
			ingest.FieldComposite: "0",
		}, nil, nil), g)
		if out.Attendance != types.AttendanceNoData {
			t.Fatalf("attendance=%q, want no-data", out.Attendance)
		}
		if out.TierLP != nil || out.TierComposite != nil {
			t.Fatal("no-data rows must not carry tiers")
		}
	})

	t.Run("valid_composite_is_present", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldComposite: "6,5",
		}, nil, nil), g)
		if out.Attendance != types.AttendancePresent {
			t.Fatalf("attendance=%q, want present", out.Attendance)
		}
		if out.Composite == nil || *out.Composite != 6.5 {
			t.Fatalf("composite=%v, want 6.5", out.Composite)
		}
	})

	t.Run("explicit_absence_wins_over_presence", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldAbsent:    "SIM",
			ingest.FieldPresent:   "1",
			ingest.FieldComposite: "7,0",
		}, nil, nil), g)
		if out.Attendance != types.AttendanceAbsent {
			t.Fatalf("attendance=%q, want absent", out.Attendance)
		}
	})

	t.Run("absence_zero_means_present", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldAbsent:    "0",
			ingest.FieldComposite: "5,0",
		}, nil, nil), g)
		if out.Attendance != types.AttendancePresent {
			t.Fatalf("attendance=%q, want present", out.Attendance)
		}
	})
}

func TestZeroCompositeReclassifiesAsAbsent(t *testing.T) {
	g := grade(t, "2º ANO")
	out := Compute(row(map[ingest.Field]string{
		ingest.FieldPresent:   "1",
		ingest.FieldScoreLP:   "4,0",
		ingest.FieldScoreMT:   "3,0",
		ingest.FieldComposite: "0",
	}, nil, nil), g)
	if out.Attendance != types.AttendanceAbsent {
		t.Fatalf("attendance=%q, want absent", out.Attendance)
	}
	if out.ScoreLP != nil || out.ScoreMT != nil || out.Composite != nil {
		t.Fatalf("discipline scores must be cleared, got lp=%v mt=%v media=%v",
			out.ScoreLP, out.ScoreMT, out.Composite)
	}
	if out.TierLP != nil || out.TierMT != nil || out.TierComposite != nil {
		t.Fatal("reclassified rows must not carry tiers")
	}
}

func TestTierBoundaries(t *testing.T) {
	g := grade(t, "2º ANO") // LP has 14 questions, bands 0-3 / 4-7 / 8-11 / 12-14
	cases := []struct {
		name    string
		correct string
		want    int
	}{
		{name: "upper_edge_band1", correct: "3", want: 1},
		{name: "lower_edge_band2", correct: "4", want: 2},
		{name: "upper_edge_band3", correct: "11", want: 3},
		{name: "lower_edge_band4", correct: "12", want: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Compute(row(map[ingest.Field]string{
				ingest.FieldCorrectLP: tc.correct,
				ingest.FieldComposite: "5,0",
			}, nil, nil), g)
			if out.TierLP == nil || *out.TierLP != tc.want {
				t.Fatalf("TierLP=%v, want %d", out.TierLP, tc.want)
			}
		})
	}
}

func TestCompositeTier(t *testing.T) {
	g := grade(t, "2º ANO")

	t.Run("mean_of_both_disciplines", func(t *testing.T) {
		// LP 2 correct -> tier 1, MT 13 correct -> tier 4; mean 2.5 rounds to 3.
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldCorrectLP: "2",
			ingest.FieldCorrectMT: "13",
			ingest.FieldComposite: "5,0",
		}, nil, nil), g)
		if out.TierComposite == nil || *out.TierComposite != 3 {
			t.Fatalf("TierComposite=%v, want 3", out.TierComposite)
		}
	})

	t.Run("single_discipline", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldCorrectMT: "8",
			ingest.FieldComposite: "5,0",
		}, nil, nil), g)
		if out.TierLP != nil {
			t.Fatal("LP tier should be unavailable")
		}
		if out.TierComposite == nil || *out.TierComposite != 3 {
			t.Fatalf("TierComposite=%v, want 3", out.TierComposite)
		}
	})

	t.Run("none_available", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldComposite: "5,0",
		}, nil, nil), g)
		if out.TierComposite != nil {
			t.Fatalf("TierComposite=%v, want nil", out.TierComposite)
		}
	})
}

func TestWritingScore(t *testing.T) {
	g := grade(t, "2º ANO")

	t.Run("mean_of_subscores", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldComposite: "6,0",
		}, nil, map[int]string{1: "8", 2: "6", 5: "10"}), g)
		if out.WritingScore == nil || *out.WritingScore != 8 {
			t.Fatalf("WritingScore=%v, want 8", out.WritingScore)
		}
		if len(out.Productions) != 3 {
			t.Fatalf("productions=%d, want 3", len(out.Productions))
		}
		if out.WritingItems[4] == nil || *out.WritingItems[4] != 10 {
			t.Fatalf("WritingItems[4]=%v, want 10", out.WritingItems[4])
		}
	})

	t.Run("fallback_to_final_column", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldComposite:    "6,0",
			ingest.FieldWritingFinal: "7,5",
		}, nil, nil), g)
		if out.WritingScore == nil || *out.WritingScore != 7.5 {
			t.Fatalf("WritingScore=%v, want 7.5", out.WritingScore)
		}
		if len(out.Productions) != 0 {
			t.Fatal("no production drafts without sub-scores")
		}
	})

	t.Run("no_writing_grade_skips", func(t *testing.T) {
		out := Compute(row(map[ingest.Field]string{
			ingest.FieldComposite: "6,0",
		}, nil, map[int]string{1: "8"}), grade(t, "5º ANO"))
		if out.WritingScore != nil || len(out.Productions) != 0 {
			t.Fatal("grades without a writing component must not produce writing scores")
		}
	})
}

func TestQuestionItems(t *testing.T) {
	g := grade(t, "2º ANO")
	out := Compute(row(map[ingest.Field]string{
		ingest.FieldComposite: "6,0",
	}, map[int]string{1: "1", 2: "0", 3: "B", 15: "1", 16: "1"}, nil), g)

	if len(out.Items) != 5 {
		t.Fatalf("items=%d, want 5", len(out.Items))
	}
	byQ := map[int]ItemDraft{}
	for _, it := range out.Items {
		byQ[it.Question] = it
	}
	if it := byQ[1]; it.Correct == nil || !*it.Correct || it.Point == nil || *it.Point != 1 {
		t.Fatalf("Q1 draft=%+v", it)
	}
	if it := byQ[2]; it.Correct == nil || *it.Correct {
		t.Fatalf("Q2 draft=%+v", it)
	}
	if it := byQ[3]; it.Correct != nil || it.Answer != "B" {
		t.Fatalf("Q3 draft=%+v", it)
	}

	// counted fallback: LP range is Q1-Q14 (1 of 2 marked correct), MT is Q15-Q28.
	if out.CorrectLP == nil || *out.CorrectLP != 1 {
		t.Fatalf("CorrectLP=%v, want 1", out.CorrectLP)
	}
	if out.CorrectMT == nil || *out.CorrectMT != 2 {
		t.Fatalf("CorrectMT=%v, want 2", out.CorrectMT)
	}
}

func TestMalformedNumbersDegradeToNil(t *testing.T) {
	g := grade(t, "2º ANO")
	out := Compute(row(map[ingest.Field]string{
		ingest.FieldCorrectLP: "abc",
		ingest.FieldScoreLP:   "x,y",
		ingest.FieldComposite: "6,0",
	}, nil, nil), g)
	if out.CorrectLP != nil {
		t.Fatalf("CorrectLP=%v, want nil", out.CorrectLP)
	}
	if out.ScoreLP != nil {
		t.Fatalf("ScoreLP=%v, want nil", out.ScoreLP)
	}
	if out.Attendance != types.AttendancePresent {
		t.Fatalf("attendance=%q, want present", out.Attendance)
	}
}
