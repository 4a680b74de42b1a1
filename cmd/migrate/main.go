package main

import (
	"context" // Command timeouts
	"fmt"     // Output
	"os"      // Exit codes
	"time"    // Timeouts

	"content_platform/internal/app"     // Service wiring
	"content_platform/internal/config"  // Custom import path (Config)
	"content_platform/internal/db"      // Custom import path (Database)
	"content_platform/internal/domain"  // Roles
	"content_platform/internal/logging" // Structured logging setup
	"content_platform/internal/service" // Cron frequencies

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"github.com/spf13/cobra"       // Command line interface
	"gorm.io/gorm"                 // GORM ORM library
)

var cfg *config.Config

// rootCmd migrates the schema when run without a subcommand
var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the database and run maintenance tasks",
	Long: `Migrate the database schema to the current models.

Available subcommands:
  cron run <frequency> - Run the minutely, hourly, daily or weekly jobs once
  user promote <email> - Grant the admin role
  user demote <email>  - Revoke the admin role`,
	PersistentPreRun: func(*cobra.Command, []string) {
		cfg = config.LoadConfig() // Load configuration
		logging.Setup(cfg)
	},
	RunE: runMigrate,
}

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run scheduled jobs",
}

// cronRunCmd runs one frequency, for hosts without the in-process scheduler
var cronRunCmd = &cobra.Command{
	Use:       "run <frequency>",
	Short:     "Run every job of one frequency once",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"minutely", "hourly", "daily", "weekly"},
	RunE:      runCron,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user roles",
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd.Context(), args[0], domain.RoleAdmin)
	},
}

var userDemoteCmd = &cobra.Command{
	Use:   "demote <email>",
	Short: "Revoke the admin role",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRole(cmd.Context(), args[0], domain.RoleUser) },
}

func init() {
	cronCmd.AddCommand(cronRunCmd)
	userCmd.AddCommand(userPromoteCmd, userDemoteCmd)
	rootCmd.AddCommand(cronCmd, userCmd)
}

// openDB connects to the configured database
func openDB() (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return db.Open(cfg)
}

// openRedis connects to Redis and checks the connection
func openRedis(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	return rdb, nil
}

func runMigrate(*cobra.Command, []string) error {
	gdb, err := openDB()
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	logrus.Info("Migration completed successfully")
	return nil
}

func runCron(cmd *cobra.Command, args []string) error {
	freq, err := service.ParseFrequency(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	gdb, err := openDB()
	if err != nil {
		return err
	}
	rdb, err := openRedis(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()
	collaborators, err := app.NewCollaborators(cfg, gdb)
	if err != nil {
		return err
	}
	defer collaborators.Close()

	report, err := app.Build(cfg, gdb, rdb, collaborators).Cron.Run(ctx, freq)
	if err != nil {
		return err
	}
	for _, r := range report.Results {
		status := "ok"
		if r.Error != "" {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-34s %-10s %s\n", r.Job, r.Duration.Round(time.Millisecond), status)
	}
	if report.Failed() {
		return fmt.Errorf("%s run had failing jobs", freq)
	}
	return nil
}

func setRole(ctx context.Context, email, role string) error {
	gdb, err := openDB()
	if err != nil {
		return err
	}
	users := service.NewUserService(gdb)
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if _, err := users.SetRole(ctx, user.ID, role); err != nil {
		return err
	}
	// Live sessions carry the role, keep them in sync when Redis is reachable
	if rdb, err := openRedis(ctx); err == nil {
		defer rdb.Close()
		if err := service.NewUserSessionService(rdb, cfg.JWTSecret, cfg.SessionTTL).SetRole(ctx, user.ID, role); err != nil {
			logrus.WithError(err).Warn("Failed to update live sessions")
		}
	} else {
		logrus.WithError(err).Warn("Redis unavailable, live sessions keep the old role until they expire")
	}
	fmt.Printf("%s is now %s\n", user.Email, role)
	return nil
}

// Main entry point for migration
func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1) // cobra already printed the error
	}
}
