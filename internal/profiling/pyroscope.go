package profiling

import (
	"github.com/grafana/pyroscope-go"
	"github.com/nutriplan/nutriplan/internal/config"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
)

// Start begins continuous profiling when enabled. The returned func stops it.
func Start(cfg *config.Configuration, log *logger.Logger) (func() error, error) {
	if !cfg.Profiling.Enabled {
		return func() error { return nil }, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.Profiling.ApplicationName,
		ServerAddress:   cfg.Profiling.ServerAddress,
		Tags: map[string]string{
			"mode": cfg.Deployment.Mode,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to start the profiler").
			Mark(ierr.ErrSystem)
	}

	log.Infow("profiling enabled", "server_address", cfg.Profiling.ServerAddress)
	return profiler.Stop, nil
}
