package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fightpulse/calibration/internal/config"
	"github.com/fightpulse/calibration/internal/database"
	"github.com/fightpulse/calibration/internal/logger"
	"github.com/fightpulse/calibration/internal/repository"
	"github.com/fightpulse/calibration/internal/service"
	"github.com/fightpulse/calibration/internal/weaklabel"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile    string
	limit         int
	force         bool
	minConfidence float64

	appLog   *logrus.Logger
	cfg      *config.Config
	db       *database.DB
	repos    *repository.Repositories
	labelSvc *service.LabelingService
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	runCmd.Flags().IntVarP(&limit, "limit", "l", 0, "Cap the number of fights considered (0 uses the configured batch limit)")
	runCmd.Flags().BoolVar(&force, "force", false, "Re-derive labels for fights that already carry a weak label")
	runCmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Override the configured confidence floor")
}

var rootCmd = &cobra.Command{
	Use:   "weak-labels",
	Short: "Derive weak entertainment labels from fight statistics",
	Long: `Run the labeling functions over completed fights without authoritative
ground truth and write the aggregated weak labels.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Label every eligible unlabeled fight",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context())
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <source-id>",
	Short: "Show every labeling function's vote for one fight without writing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return previewFight(cmd.Context(), args[0])
	},
}

func main() {
	rootCmd.AddCommand(runCmd, previewCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(context.Background(), cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	appLog = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	var err error
	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	labelSvc = service.NewLabelingService(repos.Outcome, repos.WeakLabel, &cfg.Labeling, appLog)
	return nil
}

func runBatch(ctx context.Context) error {
	result, err := labelSvc.RunBatch(ctx, service.BatchOptions{
		Limit:         limit,
		Force:         force,
		MinConfidence: minConfidence,
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Report())
	return nil
}

func previewFight(ctx context.Context, sourceID string) error {
	agg, err := labelSvc.Preview(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to preview %s: %w", sourceID, err)
	}

	fmt.Printf("fight: %s\n", sourceID)
	for _, fn := range weaklabel.Functions() {
		vote := agg.Votes[fn.Name]
		if vote.Label == "" {
			continue
		}
		fmt.Printf("  %-20s %-8s %.2f\n", fn.Name, vote.Label, vote.Confidence)
	}
	fmt.Printf("aggregate: %s  confidence %.3f  score %.0f\n", agg.Label, agg.Confidence, agg.Score)
	if len(agg.ContributingFunctions) > 0 {
		fmt.Printf("contributing: %v\n", agg.ContributingFunctions)
	}
	return nil
}
