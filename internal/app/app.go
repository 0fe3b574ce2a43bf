// Package app wires configuration into the query service shared by the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"learner-dashboard/internal/assets"
	"learner-dashboard/internal/cache"
	"learner-dashboard/internal/config"
	"learner-dashboard/internal/httpx"
	"learner-dashboard/internal/providers/platform"
	"learner-dashboard/internal/queries"
	"learner-dashboard/internal/sftpclient"
)

const userAgent = "learner-dashboard/1.0"

// Build constructs the platform client, cache and query service. ctx scopes the
// OAuth2 token source and should live as long as the service.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*queries.Service, *cache.Cache, error) {
	p := cfg.Platform

	retry := httpx.DefaultRetryConfig()
	retry.MaxAttempts = p.MaxAttempts

	client := httpx.New(ctx, httpx.Options{
		Timeout:           p.Timeout,
		Retry:             retry,
		RequestsPerSecond: p.RequestsPerSecond,
		Burst:             p.Burst,
		AccessToken:       p.AccessToken,
		ClientID:          p.ClientID,
		ClientSecret:      p.ClientSecret,
		TokenURL:          p.TokenURL,
		UserAgent:         userAgent,
		Logger:            log,
	})

	gw := platform.New(platform.Config{
		LMSBaseURL: p.LMSBaseURL,
		CMSBaseURL: p.CMSBaseURL,
		Username:   p.Username,
	}, client, log)

	c, err := cache.New(cache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		Logger:     log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build cache: %w", err)
	}

	svc := queries.New(gw, c, queries.Options{
		Stale: queries.StaleTimes{
			Catalog:      cfg.Cache.CatalogStale,
			Completion:   cfg.Cache.CompletionStale,
			Organization: cfg.Cache.OrganizationStale,
		},
		FanOut: cfg.Dashboard.FanOut,
		Assets: assets.Resolver{
			LMSBaseURL:      p.LMSBaseURL,
			LearningBaseURL: p.LearningBaseURL,
		},
		Logger: log,
	})
	return svc, c, nil
}

// SFTP maps the sftp config section to an upload target.
func SFTP(cfg config.SFTPConfig) sftpclient.Config {
	return sftpclient.Config{
		Host:                  cfg.Host,
		Port:                  cfg.Port,
		User:                  cfg.User,
		Pass:                  cfg.Pass,
		RemoteDir:             cfg.Dir,
		KnownHostsPath:        cfg.KnownHosts,
		InsecureIgnoreHostKey: cfg.InsecureIgnoreHostKey,
	}
}
