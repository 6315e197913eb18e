package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avaliaedu/avalia-backend/internal/gradecfg"
	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/repos"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

// productionRubric are the default labels for the eight writing-production
// items, in rubric order.
var productionRubric = []string{
	"Adequação ao tema",
	"Adequação ao gênero",
	"Coerência",
	"Coesão",
	"Registro linguístico",
	"Convenções da escrita",
	"Pontuação",
	"Autoria",
}

// Catalog is the resolved question/production-item catalog an import run
// writes granular results against.
type Catalog struct {
	QuestionsCreated  int
	QuestionByNumber  map[int]uuid.UUID
	ProductionByOrder map[int]uuid.UUID
}

type CatalogService interface {
	// Ensure makes the shared catalog complete (Q1..Qmax plus the rubric
	// items) and returns lookup maps. Existing rows are never modified, so
	// concurrent and repeated runs converge on the same catalog.
	Ensure(ctx context.Context) (*Catalog, error)
}

type catalogService struct {
	log       *logger.Logger
	cfg       *gradecfg.Config
	questions repos.QuestionRepo
	items     repos.ProductionItemRepo
}

func NewCatalogService(baseLog *logger.Logger, cfg *gradecfg.Config, questions repos.QuestionRepo, items repos.ProductionItemRepo) CatalogService {
	return &catalogService{
		log:       baseLog.With("service", "CatalogService"),
		cfg:       cfg,
		questions: questions,
		items:     items,
	}
}

func (s *catalogService) Ensure(ctx context.Context) (*Catalog, error) {
	out := &Catalog{
		QuestionByNumber:  map[int]uuid.UUID{},
		ProductionByOrder: map[int]uuid.UUID{},
	}

	existing, err := s.questions.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for _, q := range existing {
		out.QuestionByNumber[q.Number] = q.ID
	}

	richest := s.cfg.RichestGrade()
	var missing []*types.Question
	for n := 1; n <= s.cfg.MaxQuestions(); n++ {
		if _, ok := out.QuestionByNumber[n]; ok {
			continue
		}
		q := &types.Question{
			Code:       fmt.Sprintf("Q%d", n),
			Number:     n,
			Discipline: "",
			Area:       "",
		}
		for _, d := range richest.Disciplines {
			if d.Contains(n) {
				q.Discipline = d.Code
				q.Area = d.Name
				break
			}
		}
		missing = append(missing, q)
	}
	if len(missing) > 0 {
		if err := s.questions.CreateMissing(ctx, nil, missing); err != nil {
			return nil, fmt.Errorf("create questions: %w", err)
		}
		// Re-read instead of trusting the in-memory ids: with DoNothing a
		// concurrent run may have won the insert race for some codes.
		all, err := s.questions.ListAll(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("reload questions: %w", err)
		}
		out.QuestionsCreated = len(all) - len(existing)
		for _, q := range all {
			out.QuestionByNumber[q.Number] = q.ID
		}
	}

	existingItems, err := s.items.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list production items: %w", err)
	}
	for _, it := range existingItems {
		out.ProductionByOrder[it.Order] = it.ID
	}
	var missingItems []*types.ProductionItem
	for i, label := range productionRubric {
		order := i + 1
		if _, ok := out.ProductionByOrder[order]; ok {
			continue
		}
		missingItems = append(missingItems, &types.ProductionItem{Order: order, Label: label})
	}
	if len(missingItems) > 0 {
		if err := s.items.CreateMissing(ctx, nil, missingItems); err != nil {
			return nil, fmt.Errorf("create production items: %w", err)
		}
		allItems, err := s.items.ListAll(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("reload production items: %w", err)
		}
		for _, it := range allItems {
			out.ProductionByOrder[it.Order] = it.ID
		}
	}

	s.log.Debug("catalog ensured",
		"questions", len(out.QuestionByNumber),
		"questions_created", out.QuestionsCreated,
		"production_items", len(out.ProductionByOrder))
	return out, nil
}
