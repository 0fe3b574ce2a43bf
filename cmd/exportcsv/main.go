// Command exportcsv writes a snapshot of the learner dashboard to CSV and can
// upload it over SFTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"learner-dashboard/internal/app"
	"learner-dashboard/internal/config"
	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/export"
	"learner-dashboard/internal/logging"
	"learner-dashboard/internal/sftpclient"
	"learner-dashboard/internal/view"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (default $LPD_CONFIG)")
		outPath    = flag.String("out", "DASHBOARD_SNAPSHOT.csv", "output csv path")
		itemType   = flag.String("type", "all", "content type: all, course or learning_path")
		statuses   = flag.String("status", "", `comma separated progress statuses, e.g. "Not started,In progress"`)
		uploadSFTP = flag.Bool("sftp", false, "upload the generated CSV via SFTP")
	)
	flag.Parse()

	rootCtx, rootCancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer rootCancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	filters, err := buildFilters(*itemType, splitCSV(*statuses))
	if err != nil {
		logger.Fatal("invalid filters", zap.Error(err))
	}

	svc, _, err := app.Build(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("build service", zap.Error(err))
	}

	items, home, err := svc.Items(rootCtx)
	if err != nil {
		logger.Fatal("load dashboard", zap.Error(err))
	}
	if home.EmailConfirmationNeeded {
		logger.Warn("learner email is not confirmed, snapshot will be empty")
	}

	now := time.Now()
	rows := snapshot(items, filters, now)
	if err := writeSnapshot(*outPath, rows, now); err != nil {
		logger.Fatal("write snapshot", zap.Error(err))
	}
	logger.Info("wrote dashboard snapshot",
		zap.String("path", *outPath),
		zap.Int("rows", len(rows)),
		zap.Int("loaded", len(items)))

	if *uploadSFTP {
		if !cfg.SFTP.Enabled() {
			logger.Fatal("sftp upload requested but sftp.host or sftp.user is not set")
		}
		remoteName := filepath.Base(*outPath)
		upCfg := app.SFTP(cfg.SFTP)

		upCtx, upCancel := context.WithTimeout(rootCtx, 5*time.Minute)
		defer upCancel()

		if err := sftpclient.UploadFile(upCtx, upCfg, *outPath, remoteName); err != nil {
			logger.Fatal("sftp upload", zap.Error(err))
		}
		logger.Info("uploaded snapshot",
			zap.String("target", fmt.Sprintf("sftp://%s:%d%s/%s", upCfg.Host, upCfg.Port, upCfg.RemoteDir, remoteName)))
	}
}

func buildFilters(itemType string, statuses []string) (view.Filters, error) {
	var f view.Filters
	if t := strings.TrimSpace(itemType); t != "" && !strings.EqualFold(t, "all") {
		it, ok := domain.ParseItemType(t)
		if !ok {
			return f, fmt.Errorf("unknown type %q", itemType)
		}
		f.Type = it
	}
	for _, s := range statuses {
		st, ok := domain.ParseProgressStatus(s)
		if !ok {
			return f, fmt.Errorf("unknown status %q", s)
		}
		f.Statuses = append(f.Statuses, st)
	}
	return f, nil
}

// snapshot returns every item matching filters in dashboard order.
func snapshot(items []domain.DashboardItem, filters view.Filters, now time.Time) []domain.DashboardItem {
	size := len(items)
	if size == 0 {
		size = 1
	}
	return view.ComposeView(items, view.Request{Filters: filters, Page: 1, PageSize: size, Now: now}).Items
}

func writeSnapshot(path string, items []domain.DashboardItem, now time.Time) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteDashboardCSV(f, items, now); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
