package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestResolveHeaders(t *testing.T) {
	headers := []string{
		"Pólo", "ESCOLA", "turma", "Nome do Aluno", "Série",
		"faltou", "Média", "Acertos Português", "NOTA MT",
		"Q1", "q 2", "Questão 10", "PRODUCAO 1", "item 8", "Coluna Desconhecida",
	}
	targets, recognized := resolveHeaders(headers)

	wantFields := map[int]Field{
		0: FieldRegion,
		1: FieldSchool,
		2: FieldClass,
		3: FieldStudent,
		4: FieldGrade,
		5: FieldAbsent,
		6: FieldComposite,
		7: FieldCorrectLP,
		8: FieldScoreMT,
	}
	for col, f := range wantFields {
		got, ok := targets[col]
		if !ok || got.field != f {
			t.Fatalf("column %d (%q): got %+v, want field %s", col, headers[col], got, f)
		}
		if !recognized[f] {
			t.Fatalf("field %s not marked recognized", f)
		}
	}
	wantQuestions := map[int]int{9: 1, 10: 2, 11: 10}
	for col, q := range wantQuestions {
		if targets[col].question != q {
			t.Fatalf("column %d (%q): question=%d, want %d", col, headers[col], targets[col].question, q)
		}
	}
	wantProductions := map[int]int{12: 1, 13: 8}
	for col, p := range wantProductions {
		if targets[col].production != p {
			t.Fatalf("column %d (%q): production=%d, want %d", col, headers[col], targets[col].production, p)
		}
	}
	if _, ok := targets[14]; ok {
		t.Fatal("unknown header should not resolve to a target")
	}
}

func TestParseCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"POLO;ESCOLA;TURMA;ALUNO;SERIE;MEDIA;Q1;Q2",
		"NORTE;EMEIF SAO JOSE;2A;MARIA SILVA;2º ano;6,5;1;0",
		";;;;;;;", // blank line in the middle of the export
		"NORTE;EMEIF SAO JOSE;2A;JOAO SOUZA;2º ano;;;",
	}, "\n")

	table, err := ParseUpload("resultados.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseUpload: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(table.Rows))
	}
	first := table.Rows[0]
	if first.Index != 2 {
		t.Fatalf("first row index=%d, want 2", first.Index)
	}
	if got := first.Field(FieldStudent); got != "MARIA SILVA" {
		t.Fatalf("student=%q", got)
	}
	if got := first.Field(FieldComposite); got != "6,5" {
		t.Fatalf("composite=%q", got)
	}
	if got := first.Questions[1]; got != "1" {
		t.Fatalf("Q1=%q, want 1", got)
	}
	if got := first.Questions[2]; got != "0" {
		t.Fatalf("Q2=%q, want 0", got)
	}
	second := table.Rows[1]
	if second.Has(FieldComposite) {
		t.Fatal("blank composite cell should not be present in Fields")
	}
	if len(second.Questions) != 0 {
		t.Fatalf("blank question cells should be skipped, got %v", second.Questions)
	}
	if !table.Recognized[FieldComposite] {
		t.Fatal("composite header should be recognized even when cells are blank")
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]any{
		{"POLO", "ESCOLA", "TURMA", "ALUNO", "SERIE", "MEDIA", "Q1"},
		{"SUL", "SANTA LUZIA", "1B", "ANA LIMA", "1º ano", 7.2, "1"},
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	table, err := ParseUpload("resultados.xlsx", &buf)
	if err != nil {
		t.Fatalf("ParseUpload: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(table.Rows))
	}
	if got := table.Rows[0].Field(FieldStudent); got != "ANA LIMA" {
		t.Fatalf("student=%q", got)
	}
	if got := table.Rows[0].Questions[1]; got != "1" {
		t.Fatalf("Q1=%q", got)
	}
}

func TestParseUploadUnsupported(t *testing.T) {
	if _, err := ParseUpload("resultados.pdf", strings.NewReader("x")); err == nil {
		t.Fatal("expected unsupported-format error")
	}
}
