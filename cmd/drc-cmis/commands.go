package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"drccmis/pkg/cache"
	"drccmis/pkg/clients"
	"drccmis/pkg/cmis"
	"drccmis/pkg/config"
	"drccmis/pkg/database"
	cmiserr "drccmis/pkg/errors"
	"drccmis/pkg/health"
	"drccmis/pkg/observability"
)

const commandTimeout = 2 * time.Minute

// env is what every command needs: the resolved configuration, a logger and
// the client manager. close releases all of it.
type env struct {
	cfg     *config.Config
	logger  log.Logger
	manager *clients.Manager
	close   func()
}

func setup(clictx *cli.Context) (*env, error) {
	cfg, err := config.Load(clictx.String("conf"))
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	z, logger, err := initLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not init logger: %w", err)
	}

	ctx := context.Background()
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		Protocol:       cfg.Tracing.Protocol,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		_ = z.Sync()
		return nil, err
	}

	if cfg.Database.Source != "" {
		if err := loadStoredConfig(ctx, cfg, logger); err != nil {
			_ = shutdown(ctx)
			_ = z.Sync()
			return nil, err
		}
	}

	manager := clients.NewManager(cfg, logger)
	return &env{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		close: func() {
			if err := manager.Close(); err != nil {
				z.Warn("close client manager", zap.Error(err))
			}
			if err := shutdown(ctx); err != nil {
				z.Warn("shutdown tracing", zap.Error(err))
			}
			_ = z.Sync()
		},
	}, nil
}

// loadStoredConfig replaces the cmis section with the configuration stored in
// the database, when one was saved.
func loadStoredConfig(ctx context.Context, cfg *config.Config, logger log.Logger) error {
	db, err := database.NewDB(&database.Config{
		Driver: cfg.Database.Driver,
		Source: cfg.Database.Source,
	}, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	store := database.NewConfigStore(db, logger)
	if err := store.AutoMigrate(ctx); err != nil {
		return err
	}
	stored, err := store.Load(ctx)
	if errors.Is(err, database.ErrNoConfig) {
		log.NewHelper(logger).Info("no stored cmis config, using the config file")
		return nil
	}
	if err != nil {
		return err
	}
	cfg.CMIS = stored.ToClientConfig(cfg.CMIS)
	return nil
}

func printJSON(v interface{ ToJSON() ([]byte, error) }) error {
	data, err := v.ToJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// fail prints err as an error response and turns it into a non-zero exit.
func fail(err error) error {
	if resp := cmiserr.NewErrorResponse(err); resp != nil {
		_ = printJSON(resp)
	}
	return cli.NewExitError(err.Error(), 1)
}

func check(clictx *cli.Context) error {
	e, err := setup(clictx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	client, err := e.manager.CMIS(ctx)
	if err != nil {
		return fail(err)
	}

	checker := health.NewHealthChecker()
	checker.Register(health.NewCMISChecker("dms", client, 5*time.Second))
	if rc, ok := e.manager.Cache().(*cache.RedisCache); ok {
		checker.Register(health.NewPingChecker("cache", rc.Ping))
	}

	results := checker.Check(ctx)
	status := health.StatusHealthy
	for _, r := range results {
		if r.Status == health.StatusUnhealthy {
			status = health.StatusUnhealthy
		}
	}

	resp := cmiserr.NewSuccessResponse(results).WithMeta(map[string]interface{}{
		"binding": client.Binding().Name(),
		"status":  status,
	})
	if err := printJSON(resp); err != nil {
		return err
	}
	if status == health.StatusUnhealthy {
		return cli.NewExitError("the DMS is not healthy", 2)
	}
	return nil
}

func validate(clictx *cli.Context) error {
	cfg, err := config.Load(clictx.String("conf"))
	if err != nil {
		return fail(err)
	}

	var problems []string
	if err := cmis.ValidateZaakFolderPath(cfg.CMIS.ZaakFolderPath); err != nil {
		problems = append(problems, fmt.Sprintf("zaak folder path: %v", err))
	}
	if err := cmis.ValidateOtherFolderPath(cfg.CMIS.OtherFolderPath); err != nil {
		problems = append(problems, fmt.Sprintf("other folder path: %v", err))
	}
	if cfg.Mapper.File != "" {
		if _, err := cmis.LoadMapper(cfg.Mapper.File); err != nil {
			problems = append(problems, fmt.Sprintf("mapper: %v", err))
		}
	}
	for _, m := range cfg.CMIS.URLMappings {
		if m.LongPattern == "" || m.ShortPattern == "" {
			problems = append(problems, "url mapping with an empty pattern")
		}
	}

	resp := cmiserr.NewSuccessResponse(map[string]interface{}{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
	if err := printJSON(resp); err != nil {
		return err
	}
	if len(problems) > 0 {
		return cli.NewExitError("invalid configuration", 2)
	}
	return nil
}

func cleanup(clictx *cli.Context) error {
	if !clictx.Bool("yes") {
		return cli.NewExitError("refusing to delete folders without --yes", 1)
	}

	e, err := setup(clictx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	client, err := e.manager.CMIS(ctx)
	if err != nil {
		return fail(err)
	}
	if err := client.DeleteFoldersInBase(ctx); err != nil {
		return fail(err)
	}
	return printJSON(cmiserr.NewSuccessResponse(nil).WithMessage("base folder emptied"))
}

func document(clictx *cli.Context) error {
	uuid := clictx.Args().First()
	if uuid == "" {
		return cli.NewExitError("document uuid is required", 1)
	}

	e, err := setup(clictx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	client, err := e.manager.CMIS(ctx)
	if err != nil {
		return fail(err)
	}
	doc, err := client.GetDocument(ctx, uuid)
	if err != nil {
		return fail(err)
	}
	return printJSON(cmiserr.NewSuccessResponse(documentSummary(doc)))
}

func documentSummary(doc *cmis.Document) map[string]interface{} {
	return map[string]interface{}{
		"object_id":       doc.ID(),
		"uuid":            doc.UUID,
		"identificatie":   doc.Identificatie,
		"bronorganisatie": doc.Bronorganisatie,
		"titel":           doc.Titel,
		"versie":          doc.Versie.String(),
		"version_label":   doc.VersionLabel(),
		"bestandsnaam":    doc.Bestandsnaam,
		"bestandsomvang":  doc.Bestandsomvang,
		"locked":          doc.Locked(),
		"kopie_van":       doc.KopieVan,
	}
}
