package app

import (
	"fmt"

	"github.com/avaliaedu/avalia-backend/internal/gradecfg"
	"github.com/avaliaedu/avalia-backend/internal/jobs"
	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/services"
)

type Services struct {
	Catalog services.CatalogService
	Persist services.PersistService
	Import  services.ImportService
	Runner  *jobs.Runner
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	gradeCfg, err := gradecfg.Load()
	if err != nil {
		return Services{}, fmt.Errorf("load grade configuration: %w", err)
	}

	catalog := services.NewCatalogService(log, gradeCfg, reposet.Question, reposet.ProductionItem)
	persist := services.NewPersistService(log, reposet.Class, reposet.Student, reposet.Result)
	runner := jobs.NewRunner(log, cfg.Jobs, gradeCfg,
		reposet.ImportJob, reposet.Region, reposet.School, reposet.Class, reposet.Student,
		catalog, persist)
	importSvc := services.NewImportService(log, reposet.ImportJob, runner)

	return Services{
		Catalog: catalog,
		Persist: persist,
		Import:  importSvc,
		Runner:  runner,
	}, nil
}
