package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/blockorder/internal/config"
	"github.com/specialistvlad/blockorder/internal/memvolume"
	"github.com/specialistvlad/blockorder/internal/sqlitevolume"
	"github.com/specialistvlad/blockorder/internal/volume"
)

func openVolume(ctx context.Context, cfg *config.Volume, logger *slog.Logger) (volume.Volume, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memvolume.New(cfg.BlockSize), nil
	case config.DriverSQLite:
		return sqlitevolume.Open(ctx, cfg.Path, cfg.BlockSize, logger)
	}
	return nil, fmt.Errorf("unknown volume driver %q", cfg.Driver)
}
