package app

import (
	"strings"
	"time"

	"github.com/avaliaedu/avalia-backend/internal/jobs"
	"github.com/avaliaedu/avalia-backend/internal/platform/envutil"
)

type Config struct {
	Addr        string
	CORSOrigins []string
	Jobs        jobs.Config
}

func LoadConfig() Config {
	cfg := Config{
		Addr: envutil.Str("HTTP_ADDR", ":8080"),
		Jobs: jobs.Config{
			PollInterval:    envutil.Duration("JOB_POLL_INTERVAL", 2*time.Second),
			PauseTimeout:    envutil.Duration("JOB_PAUSE_TIMEOUT", 30*time.Minute),
			CheckpointFloor: envutil.Int("JOB_CHECKPOINT_FLOOR", 50),
		},
	}
	if raw := envutil.Str("CORS_ORIGINS", ""); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	return cfg
}
