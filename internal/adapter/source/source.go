// Package source wires the catalog and transfer backends selected in the
// configuration.
package source

import (
	"fmt"
	"log/slog"

	"github.com/sysreinstaller/vhdget/internal/adapter"
	"github.com/sysreinstaller/vhdget/internal/adapter/source/autoinstaller"
	"github.com/sysreinstaller/vhdget/internal/adapter/source/mock"
	"github.com/sysreinstaller/vhdget/internal/adapter/transfer"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

// httpSource pairs the autoinstaller catalog with the HTTP transfer client
type httpSource struct {
	domain.CatalogClient
	domain.TransferClient
}

// NewClient creates the Source for cfg.Source.Type.
// This factory function abstracts away the specific backend implementation.
func NewClient(cfg *adapter.Config, logger *slog.Logger) (domain.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("source config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := adapter.ExpandHome(cfg.Download.Dir)
	if err != nil {
		return nil, err
	}

	switch cfg.Source.Type {
	case adapter.SourceTypeHTTP:
		if cfg.Source.BaseURL == "" {
			return nil, fmt.Errorf("source base URL is required")
		}
		policy := transfer.NewPolicy(
			cfg.Download.RetryBackoff,
			cfg.Download.RetryInitial,
			cfg.Download.RetryMax,
			cfg.Download.RetryCount,
		)
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("invalid retry policy: %w", err)
		}
		return &httpSource{
			CatalogClient:  autoinstaller.NewClient(cfg.Source.BaseURL, cfg.Source.Timeout, logger),
			TransferClient: transfer.NewClient(dir, policy, logger),
		}, nil

	case adapter.SourceTypeMock:
		fixtures := mock.DefaultFixtures()
		if cfg.Source.Fixtures != "" {
			path, err := adapter.ExpandHome(cfg.Source.Fixtures)
			if err != nil {
				return nil, err
			}
			if fixtures, err = mock.LoadFixtures(path); err != nil {
				return nil, err
			}
		}
		var opts []mock.Option
		if cfg.Source.MockStepDelay > 0 {
			opts = append(opts, mock.WithStepDelay(cfg.Source.MockStepDelay))
		}
		return mock.NewClient(fixtures, dir, logger, opts...), nil

	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Source.Type)
	}
}
