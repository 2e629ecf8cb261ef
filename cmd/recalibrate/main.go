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
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile     string
	stream         string
	windowMonths   int
	minSamples     int
	eceThreshold   float64
	brierThreshold float64
	mceThreshold   float64
	coverageLevels []float64
	validityDays   int
	dryRun         bool

	appLog   *logrus.Logger
	cfg      *config.Config
	db       *database.DB
	repos    *repository.Repositories
	recalSvc *service.RecalibrationService
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&stream, "stream", "s", "", "Prediction stream (default: all configured streams)")

	runCmd.Flags().IntVar(&windowMonths, "window-months", 0, "Override the rolling outcome window in months")
	runCmd.Flags().IntVar(&minSamples, "min-samples", 0, "Override the minimum labeled outcomes required to refit")
	runCmd.Flags().Float64Var(&eceThreshold, "ece-threshold", 0, "Override the expected calibration error drift threshold")
	runCmd.Flags().Float64Var(&brierThreshold, "brier-threshold", 0, "Override the Brier score drift threshold")
	runCmd.Flags().Float64Var(&mceThreshold, "mce-threshold", 0, "Override the maximum calibration error drift threshold")
	runCmd.Flags().Float64SliceVar(&coverageLevels, "coverage", nil, "Override the conformal coverage levels")
	runCmd.Flags().IntVar(&validityDays, "validity-days", 0, "Override the parameter validity period in days")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fit and report without persisting parameters")
}

var rootCmd = &cobra.Command{
	Use:   "recalibrate",
	Short: "Check and refit FightPulse calibration parameters",
	Long: `Inspect prediction streams for calibration drift and refit the Platt
transform and conformal thresholds when the drift policy fires.`,
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
	Short: "Run the drift check and refit where needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyOverrides(cmd)
		return runRecalibration(cmd.Context())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report calibration health without refitting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkStatus(cmd.Context())
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show when each stream is next due for recalibration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showNextDates(cmd.Context())
	},
}

func main() {
	rootCmd.AddCommand(runCmd, checkCmd, nextCmd)

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

	recalSvc = service.NewRecalibrationService(repos.Outcome, repos.Parameter, &cfg.Calibration, appLog)
	return nil
}

// applyOverrides copies explicitly passed flags over the loaded policy.
// Unset flags leave the configured values alone.
func applyOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("window-months") {
		cfg.Calibration.WindowMonths = windowMonths
	}
	if cmd.Flags().Changed("min-samples") {
		cfg.Calibration.MinSamples = minSamples
	}
	if cmd.Flags().Changed("ece-threshold") {
		cfg.Calibration.ECEThreshold = eceThreshold
	}
	if cmd.Flags().Changed("brier-threshold") {
		cfg.Calibration.BrierThreshold = brierThreshold
	}
	if cmd.Flags().Changed("mce-threshold") {
		cfg.Calibration.MCEThreshold = mceThreshold
	}
	if cmd.Flags().Changed("coverage") {
		cfg.Calibration.CoverageLevels = coverageLevels
	}
	if cmd.Flags().Changed("validity-days") {
		cfg.Calibration.ValidityDays = validityDays
	}
}

func targetStreams() []string {
	if stream != "" {
		return []string{stream}
	}
	return cfg.Calibration.Streams
}

func runRecalibration(ctx context.Context) error {
	failed := 0
	for _, s := range targetStreams() {
		result, err := recalSvc.Recalibrate(ctx, s, dryRun)
		if err != nil {
			failed++
		}
		fmt.Println(result.Report())
	}

	if failed > 0 {
		return fmt.Errorf("recalibration failed for %d stream(s)", failed)
	}
	return nil
}

func checkStatus(ctx context.Context) error {
	for _, s := range targetStreams() {
		status, err := recalSvc.CheckStatus(ctx, s)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", s, err)
		}
		fmt.Println(status.Summary())
	}
	return nil
}

func showNextDates(ctx context.Context) error {
	for _, s := range targetStreams() {
		next, err := recalSvc.GetNextRecalibrationDate(ctx, s)
		if err != nil {
			return fmt.Errorf("failed to resolve next date for %s: %w", s, err)
		}
		fmt.Printf("%s: next recalibration due %s\n", s, next.Format("2006-01-02"))
	}
	return nil
}
