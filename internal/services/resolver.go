package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/repos"
	"github.com/avaliaedu/avalia-backend/internal/textnorm"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

var (
	ErrMissingRegion  = errors.New("row has no region name")
	ErrMissingSchool  = errors.New("row has no school name")
	ErrMissingStudent = errors.New("row has no student name")
)

// EntityRef points at a class or student that either already exists (ID) or
// is pending creation in this run's arena (Temp). Temps are rewritten to
// real ids by the persistence layer.
type EntityRef struct {
	ID   uuid.UUID
	Temp int
}

func (r EntityRef) Resolved() bool { return r.ID != uuid.Nil }

type ClassDraft struct {
	Temp           int
	SchoolID       uuid.UUID
	Cycle          string
	Code           string
	NormalizedCode string
}

type StudentDraft struct {
	Temp           int
	SchoolID       uuid.UUID
	Class          EntityRef
	HasClass       bool
	Cycle          string
	Name           string
	NormalizedName string
}

type ResolverCounts struct {
	RegionsCreated   int
	RegionsExisting  int
	SchoolsCreated   int
	SchoolsExisting  int
	ClassesExisting  int
	StudentsExisting int
}

// Resolver maps raw region/school/class/student names onto entity
// references for one import run. Caches and arenas are owned by the run and
// thrown away with it; nothing here is shared across jobs.
type Resolver struct {
	log      *logger.Logger
	regions  repos.RegionRepo
	schools  repos.SchoolRepo
	classes  repos.ClassRepo
	students repos.StudentRepo
	cycle    string

	regionCache  map[string]uuid.UUID
	schoolCache  map[string]uuid.UUID
	classCache   map[string]EntityRef
	studentCache map[string]EntityRef

	ClassArena   []*ClassDraft
	StudentArena []*StudentDraft

	Counts ResolverCounts
}

func NewResolver(baseLog *logger.Logger, regions repos.RegionRepo, schools repos.SchoolRepo, classes repos.ClassRepo, students repos.StudentRepo, cycle string) *Resolver {
	return &Resolver{
		log:          baseLog.With("service", "Resolver", "cycle", cycle),
		regions:      regions,
		schools:      schools,
		classes:      classes,
		students:     students,
		cycle:        cycle,
		regionCache:  map[string]uuid.UUID{},
		schoolCache:  map[string]uuid.UUID{},
		classCache:   map[string]EntityRef{},
		studentCache: map[string]EntityRef{},
	}
}

// ResolveRegion looks a region up by normalized name: run cache, then
// storage, then create.
func (r *Resolver) ResolveRegion(ctx context.Context, tx *gorm.DB, rawName string) (uuid.UUID, error) {
	normalized := textnorm.Name(rawName)
	if normalized == "" {
		return uuid.Nil, ErrMissingRegion
	}
	if id, ok := r.regionCache[normalized]; ok {
		return id, nil
	}
	existing, err := r.regions.GetByNormalizedName(ctx, tx, normalized)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup region %q: %w", normalized, err)
	}
	if existing != nil {
		r.regionCache[normalized] = existing.ID
		r.Counts.RegionsExisting++
		return existing.ID, nil
	}
	region := &types.Region{Name: textnorm.Name(rawName), NormalizedName: normalized}
	if err := r.regions.Create(ctx, tx, region); err != nil {
		return uuid.Nil, fmt.Errorf("create region %q: %w", normalized, err)
	}
	r.regionCache[normalized] = region.ID
	r.Counts.RegionsCreated++
	return region.ID, nil
}

// ResolveSchool resolves an institution name, creating it under the row's
// region when unseen. A school that already exists does not need the region
// column; a new school with no region is a row-level error.
func (r *Resolver) ResolveSchool(ctx context.Context, tx *gorm.DB, rawRegion, rawSchool string) (uuid.UUID, error) {
	normalized := textnorm.School(rawSchool)
	if normalized == "" {
		return uuid.Nil, ErrMissingSchool
	}
	if id, ok := r.schoolCache[normalized]; ok {
		return id, nil
	}
	existing, err := r.schools.GetByNormalizedName(ctx, tx, normalized)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup school %q: %w", normalized, err)
	}
	if existing != nil {
		r.schoolCache[normalized] = existing.ID
		r.Counts.SchoolsExisting++
		return existing.ID, nil
	}
	regionID, err := r.ResolveRegion(ctx, tx, rawRegion)
	if err != nil {
		return uuid.Nil, err
	}
	school := &types.School{
		RegionID:       regionID,
		Name:           textnorm.Name(rawSchool),
		NormalizedName: normalized,
	}
	if err := r.schools.Create(ctx, tx, school); err != nil {
		return uuid.Nil, fmt.Errorf("create school %q: %w", normalized, err)
	}
	r.schoolCache[normalized] = school.ID
	r.Counts.SchoolsCreated++
	return school.ID, nil
}

// ResolveClass is scoped to (school, cycle). A blank class code is not an
// error: the student is simply unassigned. Unseen classes go to the arena.
func (r *Resolver) ResolveClass(ctx context.Context, tx *gorm.DB, schoolID uuid.UUID, rawCode string) (EntityRef, bool, error) {
	normalized := textnorm.Name(rawCode)
	if normalized == "" {
		return EntityRef{}, false, nil
	}
	key := schoolID.String() + "|" + normalized
	if ref, ok := r.classCache[key]; ok {
		return ref, true, nil
	}
	existing, err := r.classes.GetByNaturalKey(ctx, tx, schoolID, r.cycle, normalized)
	if err != nil {
		return EntityRef{}, false, fmt.Errorf("lookup class %q: %w", normalized, err)
	}
	if existing != nil {
		ref := EntityRef{ID: existing.ID}
		r.classCache[key] = ref
		r.Counts.ClassesExisting++
		return ref, true, nil
	}
	draft := &ClassDraft{
		Temp:           len(r.ClassArena),
		SchoolID:       schoolID,
		Cycle:          r.cycle,
		Code:           textnorm.Name(rawCode),
		NormalizedCode: normalized,
	}
	r.ClassArena = append(r.ClassArena, draft)
	ref := EntityRef{Temp: draft.Temp}
	r.classCache[key] = ref
	return ref, true, nil
}

// ResolveStudent is scoped to (school, class-or-null, cycle).
func (r *Resolver) ResolveStudent(ctx context.Context, tx *gorm.DB, schoolID uuid.UUID, class EntityRef, hasClass bool, rawName string) (EntityRef, error) {
	normalized := textnorm.Name(rawName)
	if normalized == "" {
		return EntityRef{}, ErrMissingStudent
	}
	classKey := "-"
	if hasClass {
		if class.Resolved() {
			classKey = class.ID.String()
		} else {
			classKey = fmt.Sprintf("t%d", class.Temp)
		}
	}
	key := schoolID.String() + "|" + classKey + "|" + normalized
	if ref, ok := r.studentCache[key]; ok {
		return ref, nil
	}
	// Storage lookup only makes sense against a class that already exists.
	if !hasClass || class.Resolved() {
		var classID *uuid.UUID
		if hasClass {
			id := class.ID
			classID = &id
		}
		existing, err := r.students.GetByNaturalKey(ctx, tx, schoolID, classID, r.cycle, normalized)
		if err != nil {
			return EntityRef{}, fmt.Errorf("lookup student: %w", err)
		}
		if existing != nil {
			ref := EntityRef{ID: existing.ID}
			r.studentCache[key] = ref
			r.Counts.StudentsExisting++
			return ref, nil
		}
	}
	draft := &StudentDraft{
		Temp:           len(r.StudentArena),
		SchoolID:       schoolID,
		Class:          class,
		HasClass:       hasClass,
		Cycle:          r.cycle,
		Name:           textnorm.Name(rawName),
		NormalizedName: normalized,
	}
	r.StudentArena = append(r.StudentArena, draft)
	ref := EntityRef{Temp: draft.Temp}
	r.studentCache[key] = ref
	return ref, nil
}
