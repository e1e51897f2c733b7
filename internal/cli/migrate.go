package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/sqlstore"
	"live-quiz-service/internal/logger"
)

// NewMigrateCmd applies database migrations and optionally seeds the quiz catalog.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New("live-quiz", cfg.Log.Level, cfg.Log.Format)
			db, err := sqlstore.Open(cfg.Postgres.URL, cfg.SQLite.Path)
			if err != nil {
				return fmt.Errorf("postgres url or sqlite path must be configured: %w", err)
			}
			defer db.Close()
			if err := runMigrations(cmd.Context(), db, log); err != nil {
				return err
			}
			if seed {
				return seedCatalog(cmd.Context(), db, cfg.Quiz.Fixtures, log)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load quiz.fixtures into the quizzes table")
	return cmd
}

func runMigrations(ctx context.Context, db *bun.DB, log logrus.FieldLogger) error {
	applied, err := sqlstore.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		log.Info("database is up to date")
		return nil
	}
	log.WithField("migrations", applied).Info("migrations applied")
	return nil
}

func seedCatalog(ctx context.Context, db *bun.DB, fixtures string, log logrus.FieldLogger) error {
	if fixtures == "" {
		return fmt.Errorf("quiz.fixtures not configured")
	}
	loader, err := memory.LoadFixtures(fixtures)
	if err != nil {
		return err
	}
	catalog := sqlstore.NewCatalog(db)
	quizzes := loader.Quizzes()
	for _, quiz := range quizzes {
		if err := catalog.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
	}
	log.WithField("quizzes", len(quizzes)).Info("catalog seeded")
	return nil
}
