// Package app wires configuration into ready-to-use services.
package app

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"treecert/internal/config"
	"treecert/internal/services"
)

// Services holds all initialized services for the application.
type Services struct {
	Client  *services.CertificateClient
	Image   *services.ImageService
	Cache   *services.CacheService   // nil when CACHE_TTL is 0
	Storage *services.StorageService // nil unless SAVE_TARGET=gcs
	Ledger  *services.LedgerService  // nil unless LEDGER_ENABLED

	closers []func() error
}

// InitServices initializes all application services based on configuration.
// Google clients are only created for the components that are enabled.
func InitServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	svcs := &Services{
		Image: services.NewImageService(cfg.ImageMaxDimension, cfg.JPEGQuality, logger),
	}

	sink, err := svcs.initSink(ctx, cfg, logger)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	if cfg.LedgerEnabled {
		client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID, credentials(cfg)...)
		if err != nil {
			svcs.Close()
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		svcs.closers = append(svcs.closers, client.Close)
		svcs.Ledger = services.NewLedgerService(client, cfg.FirestoreCollection)
		logger.Debug("issued-certificate ledger enabled",
			zap.String("project", cfg.FirestoreProjectID),
			zap.String("collection", cfg.FirestoreCollection),
		)
	}

	opts := []services.ClientOption{
		services.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		services.WithSink(sink),
		services.WithLogger(logger),
	}
	if cfg.RateLimitRPS > 0 {
		opts = append(opts, services.WithRateLimit(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst))
	}
	if cfg.CacheTTL > 0 {
		svcs.Cache = services.NewCacheService(cfg.CacheTTL, cfg.CacheCleanupInterval)
		svcs.closers = append(svcs.closers, func() error {
			svcs.Cache.Stop()
			return nil
		})
		opts = append(opts, services.WithDocumentCache(svcs.Cache))
	}
	svcs.Client = services.NewCertificateClient(cfg.CertificateAPIURL, opts...)

	return svcs, nil
}

func (s *Services) initSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Sink, error) {
	switch cfg.SaveTarget {
	case config.SaveTargetGCS:
		client, err := storage.NewClient(ctx, credentials(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.Storage = services.NewStorageService(client, cfg.GCSBucketName, cfg.GCSPrefix)
		logger.Debug("saving certificates to cloud storage",
			zap.String("bucket", cfg.GCSBucketName),
			zap.String("prefix", cfg.GCSPrefix),
		)
		return s.Storage, nil

	case config.SaveTargetDrive:
		opts := append(credentials(cfg), option.WithScopes(drive.DriveFileScope))
		client, err := drive.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create drive client: %w", err)
		}
		logger.Debug("saving certificates to drive", zap.String("folder", cfg.GoogleDriveFolderID))
		return services.NewDriveSink(services.NewDriveClient(client), cfg.GoogleDriveFolderID), nil

	default:
		logger.Debug("saving certificates to disk", zap.String("dir", cfg.OutputDir))
		return services.NewFileSink(cfg.OutputDir), nil
	}
}

// credentials prefers inline JSON credentials over a credentials file.
func credentials(cfg *config.Config) []option.ClientOption {
	if cfg.GoogleCredentialsJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON))}
	}
	if cfg.GoogleCredentialsPath != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.GoogleCredentialsPath)}
	}
	return nil
}

// Close releases every client created by InitServices. It returns the first
// error encountered but always closes everything.
func (s *Services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
