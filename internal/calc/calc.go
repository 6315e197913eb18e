// Package calc derives per-student metrics from one upload row and the
// grade configuration: attendance, correct-answer counts, proficiency
// tiers, composite average and writing-production scores. It is pure; all
// storage concerns live elsewhere.
package calc

import (
	"math"
	"strconv"
	"strings"

	"github.com/avaliaedu/avalia-backend/internal/gradecfg"
	"github.com/avaliaedu/avalia-backend/internal/ingest"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

type ItemDraft struct {
	Question int
	Answer   string
	Correct  *bool
	Point    *float64
}

type ProductionDraft struct {
	Item  int
	Score float64
}

type Outcome struct {
	Attendance string

	CorrectLP *int
	CorrectMT *int
	ScoreLP   *float64
	ScoreMT   *float64
	Composite *float64

	WritingScore *float64
	WritingItems [8]*float64

	TierLP        *int
	TierMT        *int
	TierComposite *int

	Items       []ItemDraft
	Productions []ProductionDraft
}

// Compute applies the grade's scoring rules to one row. Malformed numeric
// cells degrade to nil values; nothing in here is a row-fatal condition.
func Compute(row ingest.Row, g *gradecfg.Grade) Outcome {
	var out Outcome

	out.Items = questionItems(row)
	out.CorrectLP = correctCount(row, out.Items, g, "LP", ingest.FieldCorrectLP)
	out.CorrectMT = correctCount(row, out.Items, g, "MT", ingest.FieldCorrectMT)

	out.ScoreLP = parseFloatCell(row.Field(ingest.FieldScoreLP))
	out.ScoreMT = parseFloatCell(row.Field(ingest.FieldScoreMT))
	out.Composite = parseFloatCell(row.Field(ingest.FieldComposite))
	if out.Composite == nil {
		out.Composite = meanOf(out.ScoreLP, out.ScoreMT)
	}

	if g.Writing {
		out.WritingScore, out.WritingItems, out.Productions = writingScores(row)
	}

	out.Attendance = resolveAttendance(row, out)

	// The source system reclassifies a present student with a zero or
	// missing composite as absent and clears the discipline scores. That
	// conflates "scored zero" with "no data"; the behavior is preserved
	// deliberately, see DESIGN.md.
	if out.Attendance == types.AttendancePresent &&
		(out.Composite == nil || *out.Composite == 0) {
		out.Attendance = types.AttendanceAbsent
		out.ScoreLP = nil
		out.ScoreMT = nil
		out.Composite = nil
	}

	if out.Attendance == types.AttendancePresent {
		if out.CorrectLP != nil {
			if d := g.Discipline("LP"); d != nil {
				out.TierLP = d.TierFor(*out.CorrectLP)
			}
		}
		if out.CorrectMT != nil {
			if d := g.Discipline("MT"); d != nil {
				out.TierMT = d.TierFor(*out.CorrectMT)
			}
		}
		out.TierComposite = compositeTier(out.TierLP, out.TierMT)
	}

	return out
}

// questionItems reads the non-blank question cells. "1"/"0" carry
// correctness and the awarded point; a letter is just the submitted
// alternative with unknown correctness.
func questionItems(row ingest.Row) []ItemDraft {
	var items []ItemDraft
	for q := 1; q <= ingest.MaxQuestionColumns; q++ {
		cell, ok := row.Questions[q]
		if !ok {
			continue
		}
		cell = strings.ToUpper(strings.TrimSpace(cell))
		if cell == "" || cell == "." || cell == "-" {
			continue
		}
		draft := ItemDraft{Question: q, Answer: cell}
		switch cell {
		case "1":
			v, p := true, 1.0
			draft.Correct, draft.Point = &v, &p
		case "0":
			v, p := false, 0.0
			draft.Correct, draft.Point = &v, &p
		}
		items = append(items, draft)
	}
	return items
}

// correctCount prefers the explicit per-discipline totals column and falls
// back to counting item correctness inside the discipline's question range.
func correctCount(row ingest.Row, items []ItemDraft, g *gradecfg.Grade, code string, field ingest.Field) *int {
	if v := parseIntCell(row.Field(field)); v != nil {
		return v
	}
	d := g.Discipline(code)
	if d == nil {
		return nil
	}
	counted := false
	total := 0
	for _, it := range items {
		if !d.Contains(it.Question) || it.Correct == nil {
			continue
		}
		counted = true
		if *it.Correct {
			total++
		}
	}
	if !counted {
		return nil
	}
	return &total
}

func writingScores(row ingest.Row) (*float64, [8]*float64, []ProductionDraft) {
	var subs [8]*float64
	var drafts []ProductionDraft
	sum, n := 0.0, 0
	for k := 1; k <= ingest.MaxProductionColumns; k++ {
		cell, ok := row.Productions[k]
		if !ok {
			continue
		}
		v := parseFloatCell(cell)
		if v == nil {
			continue
		}
		subs[k-1] = v
		drafts = append(drafts, ProductionDraft{Item: k, Score: *v})
		sum += *v
		n++
	}
	if n > 0 {
		mean := sum / float64(n)
		return &mean, subs, drafts
	}
	if v := parseFloatCell(row.Field(ingest.FieldWritingFinal)); v != nil {
		return v, subs, drafts
	}
	return nil, subs, drafts
}

// resolveAttendance: an explicit absence cell wins over a presence cell;
// with neither, attendance is inferred from the row's data — and a row with
// nothing but zeros is "no-data", a third state excluded from averages.
func resolveAttendance(row ingest.Row, out Outcome) string {
	if cell, ok := row.Fields[ingest.FieldAbsent]; ok {
		if truthy(cell) {
			return types.AttendanceAbsent
		}
		return types.AttendancePresent
	}
	if cell, ok := row.Fields[ingest.FieldPresent]; ok {
		if truthy(cell) {
			return types.AttendancePresent
		}
		return types.AttendanceAbsent
	}
	if hasData(out) {
		return types.AttendancePresent
	}
	return types.AttendanceNoData
}

func hasData(out Outcome) bool {
	for _, v := range []*float64{out.ScoreLP, out.ScoreMT, out.Composite, out.WritingScore} {
		if v != nil && *v != 0 {
			return true
		}
	}
	for _, v := range []*int{out.CorrectLP, out.CorrectMT} {
		if v != nil && *v != 0 {
			return true
		}
	}
	for _, it := range out.Items {
		if it.Correct == nil || *it.Correct {
			return true
		}
	}
	return len(out.Productions) > 0
}

// compositeTier is the band of the rounded mean of the available tier
// ordinals; nil when no discipline tier is available.
func compositeTier(tiers ...*int) *int {
	sum, n := 0, 0
	for _, t := range tiers {
		if t == nil {
			continue
		}
		sum += *t
		n++
	}
	if n == 0 {
		return nil
	}
	mean := int(math.Round(float64(sum) / float64(n)))
	if mean < 1 {
		mean = 1
	}
	if mean > 4 {
		mean = 4
	}
	return &mean
}

func meanOf(vals ...*float64) *float64 {
	sum, n := 0.0, 0
	for _, v := range vals {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// parseFloatCell accepts Brazilian decimal commas ("6,5").
func parseFloatCell(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseIntCell(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		if f := parseFloatCell(s); f != nil && *f == math.Trunc(*f) {
			i := int(*f)
			return &i
		}
		return nil
	}
	return &v
}

func truthy(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "S", "SIM", "X", "TRUE", "T", "V", "VERDADEIRO":
		return true
	case "0", "N", "NAO", "NÃO", "FALSE", "F", "":
		return false
	}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return v > 0
	}
	return false
}
