package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/opentracing/opentracing-go"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/mailingest/config"
	"github.com/customeros/mailingest/internal/database"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/repository"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
	"github.com/customeros/mailingest/server"
	"github.com/customeros/mailingest/services"
)

func main() {
	app := &cli.App{
		Name:  "mailingest",
		Usage: "IMAP ingestion, threading and classification pipeline",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:   "server",
				Usage:  "Start the HTTP trigger, job queue listener and cron manager",
				Action: serve,
			},
			{
				Name:  "ingest",
				Usage: "Run ingestion for one account and print the outcome",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "account",
						Aliases:  []string{"a"},
						Usage:    "email account id",
						Required: true,
					},
				},
				Action: ingest,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is empty")
	}

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("database initialization failed: %w", err)
	}
	return cfg, db, nil
}

func migrate(_ *cli.Context) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	if err := repository.MigrateDB(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func serve(_ *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Mailingest starting up...")

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func ingest(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return fmt.Errorf("could not initialize jaeger tracer: %w", err)
	}
	defer closer.Close()
	opentracing.SetGlobalTracer(tracer)

	svcs, err := services.InitServices(cfg, appLogger, repository.InitRepositories(db))
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx := utils.SetAppSourceInContext(context.Background(), "mailingest-cli")
	outcome := svcs.Runner.Run(ctx, c.String("account"))

	out, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if outcome.Status == enum.RunStatusFailed {
		return cli.Exit(fmt.Sprintf("ingestion failed: %s", outcome.Reason), 1)
	}
	return nil
}
