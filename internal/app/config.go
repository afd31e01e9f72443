package app

import (
	"strings"
	"time"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/utils"
)

type Config struct {
	Port         string
	AllowOrigins []string
	BatchLimit   int
	BatchWorkers int
	BatchDelay   time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	port := utils.GetEnv("PORT", "8080", log)
	originsRaw := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)
	batchLimit := utils.GetEnvAsInt("PIPELINE_BATCH_LIMIT", 10, log)
	batchWorkers := utils.GetEnvAsInt("PIPELINE_BATCH_WORKERS", 1, log)
	batchDelayMs := utils.GetEnvAsInt("PIPELINE_BATCH_DELAY_MS", 500, log)

	var origins []string
	for _, o := range strings.Split(originsRaw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		Port:         port,
		AllowOrigins: origins,
		BatchLimit:   batchLimit,
		BatchWorkers: batchWorkers,
		BatchDelay:   time.Duration(batchDelayMs) * time.Millisecond,
	}
}
