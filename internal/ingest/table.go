// Package ingest turns an uploaded spreadsheet into rows keyed by canonical
// field names. Header matching is best-effort: it tolerates case, accents,
// spacing and a list of known aliases per field, and silently ignores
// columns it does not recognize.
package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/avaliaedu/avalia-backend/internal/textnorm"
)

type Field string

const (
	FieldRegion       Field = "region"
	FieldSchool       Field = "school"
	FieldClass        Field = "class"
	FieldStudent      Field = "student"
	FieldGrade        Field = "grade"
	FieldAbsent       Field = "absent"
	FieldPresent      Field = "present"
	FieldCorrectLP    Field = "correct_lp"
	FieldCorrectMT    Field = "correct_mt"
	FieldScoreLP      Field = "score_lp"
	FieldScoreMT      Field = "score_mt"
	FieldComposite    Field = "composite"
	FieldWritingFinal Field = "writing_final"
)

const (
	MaxQuestionColumns   = 60
	MaxProductionColumns = 8
)

var fieldAliases = map[Field][]string{
	FieldRegion:       {"POLO", "POLO REGIONAL", "REGIONAL"},
	FieldSchool:       {"ESCOLA", "UNIDADE ESCOLAR", "INSTITUICAO", "NOME DA ESCOLA"},
	FieldClass:        {"TURMA", "CODIGO DA TURMA", "TURMA CODIGO"},
	FieldStudent:      {"ALUNO", "NOME DO ALUNO", "ESTUDANTE", "NOME DO ESTUDANTE"},
	FieldGrade:        {"SERIE", "ANO", "ANO/SERIE", "ETAPA", "ANO ESCOLAR"},
	FieldAbsent:       {"FALTOU", "FALTA", "AUSENTE", "AUSENCIA"},
	FieldPresent:      {"PRESENCA", "PRESENTE", "COMPARECEU", "COMPARECIMENTO"},
	FieldCorrectLP:    {"ACERTOS LP", "ACERTOS PORTUGUES", "ACERTOS LINGUA PORTUGUESA", "TOTAL ACERTOS LP"},
	FieldCorrectMT:    {"ACERTOS MT", "ACERTOS MATEMATICA", "ACERTOS MAT", "TOTAL ACERTOS MT"},
	FieldScoreLP:      {"NOTA LP", "NOTA PORTUGUES", "NOTA LINGUA PORTUGUESA", "PROFICIENCIA LP"},
	FieldScoreMT:      {"NOTA MT", "NOTA MATEMATICA", "NOTA MAT", "PROFICIENCIA MT"},
	FieldComposite:    {"MEDIA", "MEDIA GERAL", "NOTA MEDIA", "MEDIA DO ALUNO"},
	FieldWritingFinal: {"NOTA PRODUCAO", "PRODUCAO FINAL", "NOTA DA PRODUCAO TEXTUAL", "PRODUCAO TEXTO"},
}

var (
	questionHeader   = regexp.MustCompile(`^(?:Q|QUESTAO) ?(\d{1,2})$`)
	productionHeader = regexp.MustCompile(`^(?:PRODUCAO|ITEM PRODUCAO|ITEM) ?(\d)$`)
)

// Row is one data line of the upload. Fields/Questions/Productions hold only
// non-blank cells; a missing key means "no data", whether the column was
// absent or the cell empty.
type Row struct {
	// Index is the 1-based physical row number in the source file, used in
	// error reports.
	Index       int
	Fields      map[Field]string
	Questions   map[int]string
	Productions map[int]string
}

func (r Row) Field(f Field) string { return r.Fields[f] }

func (r Row) Has(f Field) bool {
	_, ok := r.Fields[f]
	return ok
}

type Table struct {
	Headers []string
	Rows    []Row
	// Recognized reports which canonical fields had a matching header,
	// regardless of cell contents.
	Recognized map[Field]bool
}

type colTarget struct {
	field      Field
	question   int
	production int
}

// resolveHeaders maps column positions onto canonical targets. Unrecognized
// headers map to nothing; that is not an error.
func resolveHeaders(headers []string) (map[int]colTarget, map[Field]bool) {
	aliasIndex := make(map[string]Field)
	for f, aliases := range fieldAliases {
		for _, a := range aliases {
			aliasIndex[a] = f
		}
	}
	targets := make(map[int]colTarget)
	recognized := make(map[Field]bool)
	for i, h := range headers {
		n := textnorm.Header(h)
		if n == "" {
			continue
		}
		if f, ok := aliasIndex[n]; ok {
			if !recognized[f] {
				targets[i] = colTarget{field: f}
				recognized[f] = true
			}
			continue
		}
		if m := questionHeader.FindStringSubmatch(n); m != nil {
			q, _ := strconv.Atoi(m[1])
			if q >= 1 && q <= MaxQuestionColumns {
				targets[i] = colTarget{question: q}
			}
			continue
		}
		if m := productionHeader.FindStringSubmatch(n); m != nil {
			p, _ := strconv.Atoi(m[1])
			if p >= 1 && p <= MaxProductionColumns {
				targets[i] = colTarget{production: p}
			}
		}
	}
	return targets, recognized
}

func buildTable(records [][]string) *Table {
	t := &Table{Recognized: map[Field]bool{}}
	start := -1
	for i, rec := range records {
		if !emptyRecord(rec) {
			t.Headers = rec
			start = i
			break
		}
	}
	if start < 0 {
		return t
	}
	targets, recognized := resolveHeaders(t.Headers)
	t.Recognized = recognized
	for i := start + 1; i < len(records); i++ {
		rec := records[i]
		if emptyRecord(rec) {
			continue
		}
		row := Row{
			Index:       i + 1,
			Fields:      map[Field]string{},
			Questions:   map[int]string{},
			Productions: map[int]string{},
		}
		for col, target := range targets {
			if col >= len(rec) {
				continue
			}
			cell := strings.TrimSpace(rec[col])
			if cell == "" {
				continue
			}
			switch {
			case target.question > 0:
				row.Questions[target.question] = cell
			case target.production > 0:
				row.Productions[target.production] = cell
			default:
				row.Fields[target.field] = cell
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func emptyRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
