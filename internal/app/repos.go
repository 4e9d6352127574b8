package app

import (
	"gorm.io/gorm"

	capturerepo "github.com/yungbote/mindtrail-backend/internal/data/repos/capture"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

type Repos struct {
	Capture capturerepo.CaptureRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Capture: capturerepo.NewCaptureRepo(db, log),
	}
}
