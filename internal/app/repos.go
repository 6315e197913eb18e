package app

import (
	"gorm.io/gorm"

	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/repos"
)

type Repos struct {
	ImportJob      repos.ImportJobRepo
	Region         repos.RegionRepo
	School         repos.SchoolRepo
	Class          repos.ClassRepo
	Student        repos.StudentRepo
	Question       repos.QuestionRepo
	ProductionItem repos.ProductionItemRepo
	Result         repos.ResultRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		ImportJob:      repos.NewImportJobRepo(db, log),
		Region:         repos.NewRegionRepo(db, log),
		School:         repos.NewSchoolRepo(db, log),
		Class:          repos.NewClassRepo(db, log),
		Student:        repos.NewStudentRepo(db, log),
		Question:       repos.NewQuestionRepo(db, log),
		ProductionItem: repos.NewProductionItemRepo(db, log),
		Result:         repos.NewResultRepo(db, log),
	}
}
