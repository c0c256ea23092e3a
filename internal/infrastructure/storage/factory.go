package storage

import (
	"context"
	"fmt"

	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
	"github.com/pharmaledger/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewReportStorage selects the report storage named by cfg.Driver. An empty
// driver returns nil, which disables report uploads.
func NewReportStorage(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (inventoryapp.ReportStorage, error) {
	switch cfg.Driver {
	case "":
		logger.Info("Report storage disabled")
		return nil, nil
	case "stub":
		logger.Warn("Using stub report storage, uploaded files are not kept")
		return NewStubReportStorage(), nil
	case "s3":
		s, err := NewS3ReportStorage(cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("Report storage ready", zap.String("bucket", s.Bucket()))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
