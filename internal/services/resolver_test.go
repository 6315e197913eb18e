package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/avaliaedu/avalia-backend/internal/repos"
	"github.com/avaliaedu/avalia-backend/internal/textnorm"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()
	return NewResolver(log,
		repos.NewRegionRepo(db, log),
		repos.NewSchoolRepo(db, log),
		repos.NewClassRepo(db, log),
		repos.NewStudentRepo(db, log),
		"2024-1")
}

func TestResolverCreatesHierarchy(t *testing.T) {
	res := newTestResolver(t)
	ctx := context.Background()

	schoolID, err := res.ResolveSchool(ctx, nil, "Polo Norte", "EMEIF São José")
	if err != nil {
		t.Fatalf("ResolveSchool: %v", err)
	}
	if schoolID == uuid.Nil {
		t.Fatal("expected a school id")
	}
	// A spelling variant of the same school resolves from the run cache,
	// region column no longer needed.
	again, err := res.ResolveSchool(ctx, nil, "", "São José")
	if err != nil {
		t.Fatalf("ResolveSchool variant: %v", err)
	}
	if again != schoolID {
		t.Fatalf("variant resolved to %s, want %s", again, schoolID)
	}
	if res.Counts.RegionsCreated != 1 || res.Counts.SchoolsCreated != 1 {
		t.Fatalf("counts = %+v, want one region and one school created", res.Counts)
	}

	classRef, hasClass, err := res.ResolveClass(ctx, nil, schoolID, "2º ANO A")
	if err != nil {
		t.Fatalf("ResolveClass: %v", err)
	}
	if !hasClass || classRef.Resolved() {
		t.Fatalf("new class should be an arena temp, got %+v hasClass=%v", classRef, hasClass)
	}
	sameClass, _, err := res.ResolveClass(ctx, nil, schoolID, "2º ano a")
	if err != nil {
		t.Fatalf("ResolveClass repeat: %v", err)
	}
	if sameClass != classRef {
		t.Fatalf("repeat class resolved to %+v, want %+v", sameClass, classRef)
	}
	if len(res.ClassArena) != 1 {
		t.Fatalf("class arena has %d drafts, want 1", len(res.ClassArena))
	}

	studentRef, err := res.ResolveStudent(ctx, nil, schoolID, classRef, true, "Maria da Silva")
	if err != nil {
		t.Fatalf("ResolveStudent: %v", err)
	}
	if studentRef.Resolved() {
		t.Fatalf("new student should be an arena temp, got %+v", studentRef)
	}
	dup, err := res.ResolveStudent(ctx, nil, schoolID, classRef, true, "MARIA DA SILVA")
	if err != nil {
		t.Fatalf("ResolveStudent repeat: %v", err)
	}
	if dup != studentRef {
		t.Fatalf("duplicate student resolved to %+v, want %+v", dup, studentRef)
	}
	if len(res.StudentArena) != 1 {
		t.Fatalf("student arena has %d drafts, want 1", len(res.StudentArena))
	}
}

func TestResolverMissingNames(t *testing.T) {
	res := newTestResolver(t)
	ctx := context.Background()

	if _, err := res.ResolveSchool(ctx, nil, "Polo", "  "); !errors.Is(err, ErrMissingSchool) {
		t.Fatalf("err = %v, want ErrMissingSchool", err)
	}
	// A new school cannot be created without its region.
	if _, err := res.ResolveSchool(ctx, nil, "", "Escola Nova"); !errors.Is(err, ErrMissingRegion) {
		t.Fatalf("err = %v, want ErrMissingRegion", err)
	}

	schoolID, err := res.ResolveSchool(ctx, nil, "Polo Sul", "Escola Central")
	if err != nil {
		t.Fatalf("ResolveSchool: %v", err)
	}
	if _, err := res.ResolveStudent(ctx, nil, schoolID, EntityRef{}, false, ""); !errors.Is(err, ErrMissingStudent) {
		t.Fatalf("err = %v, want ErrMissingStudent", err)
	}
}

func TestResolverFindsExistingRows(t *testing.T) {
	db := newTestDB(t)
	log := newTestLogger()
	regions := repos.NewRegionRepo(db, log)
	schools := repos.NewSchoolRepo(db, log)
	classes := repos.NewClassRepo(db, log)
	students := repos.NewStudentRepo(db, log)
	ctx := context.Background()

	region := &types.Region{Name: "POLO NORTE", NormalizedName: textnorm.Name("Polo Norte")}
	if err := db.Create(region).Error; err != nil {
		t.Fatalf("seed region: %v", err)
	}
	school := &types.School{RegionID: region.ID, Name: "SAO JOSE", NormalizedName: textnorm.School("EMEIF São José")}
	if err := db.Create(school).Error; err != nil {
		t.Fatalf("seed school: %v", err)
	}
	class := &types.Class{SchoolID: school.ID, Cycle: "2024-1", Code: "2º ANO A", NormalizedCode: textnorm.Name("2º ANO A")}
	if err := db.Create(class).Error; err != nil {
		t.Fatalf("seed class: %v", err)
	}
	student := &types.Student{
		SchoolID:       school.ID,
		ClassID:        &class.ID,
		Cycle:          "2024-1",
		Code:           1,
		Name:           "MARIA DA SILVA",
		NormalizedName: textnorm.Name("Maria da Silva"),
	}
	if err := db.Create(student).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}

	res := NewResolver(log, regions, schools, classes, students, "2024-1")

	schoolID, err := res.ResolveSchool(ctx, nil, "", "São José")
	if err != nil {
		t.Fatalf("ResolveSchool: %v", err)
	}
	if schoolID != school.ID {
		t.Fatalf("school resolved to %s, want %s", schoolID, school.ID)
	}
	classRef, hasClass, err := res.ResolveClass(ctx, nil, schoolID, "2º ano a")
	if err != nil || !hasClass {
		t.Fatalf("ResolveClass: ref=%+v hasClass=%v err=%v", classRef, hasClass, err)
	}
	if classRef.ID != class.ID {
		t.Fatalf("class resolved to %s, want %s", classRef.ID, class.ID)
	}
	studentRef, err := res.ResolveStudent(ctx, nil, schoolID, classRef, true, "maria da silva")
	if err != nil {
		t.Fatalf("ResolveStudent: %v", err)
	}
	if studentRef.ID != student.ID {
		t.Fatalf("student resolved to %s, want %s", studentRef.ID, student.ID)
	}
	if len(res.ClassArena) != 0 || len(res.StudentArena) != 0 {
		t.Fatalf("arenas should be empty, got %d classes %d students", len(res.ClassArena), len(res.StudentArena))
	}
	if res.Counts.SchoolsExisting != 1 || res.Counts.ClassesExisting != 1 || res.Counts.StudentsExisting != 1 {
		t.Fatalf("counts = %+v, want existing school/class/student counted once", res.Counts)
	}
}

func TestResolverScopesStudentsByClass(t *testing.T) {
	res := newTestResolver(t)
	ctx := context.Background()

	schoolID, err := res.ResolveSchool(ctx, nil, "Polo Leste", "Escola do Campo")
	if err != nil {
		t.Fatalf("ResolveSchool: %v", err)
	}
	classA, _, err := res.ResolveClass(ctx, nil, schoolID, "TURMA A")
	if err != nil {
		t.Fatalf("ResolveClass A: %v", err)
	}
	classB, _, err := res.ResolveClass(ctx, nil, schoolID, "TURMA B")
	if err != nil {
		t.Fatalf("ResolveClass B: %v", err)
	}

	inA, err := res.ResolveStudent(ctx, nil, schoolID, classA, true, "João Pedro")
	if err != nil {
		t.Fatalf("ResolveStudent A: %v", err)
	}
	inB, err := res.ResolveStudent(ctx, nil, schoolID, classB, true, "João Pedro")
	if err != nil {
		t.Fatalf("ResolveStudent B: %v", err)
	}
	if inA == inB {
		t.Fatal("same name in different classes must be two students")
	}
	unassigned, err := res.ResolveStudent(ctx, nil, schoolID, EntityRef{}, false, "João Pedro")
	if err != nil {
		t.Fatalf("ResolveStudent unassigned: %v", err)
	}
	if unassigned == inA || unassigned == inB {
		t.Fatal("class-less student must not collide with classed ones")
	}
	if len(res.StudentArena) != 3 {
		t.Fatalf("student arena has %d drafts, want 3", len(res.StudentArena))
	}
}
