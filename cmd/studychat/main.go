package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/studychat/internal/profile"
	"github.com/hrygo/studychat/internal/service"
	"github.com/hrygo/studychat/internal/version"
	"github.com/hrygo/studychat/server"
	"github.com/hrygo/studychat/store"
	"github.com/hrygo/studychat/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:           "studychat",
		Short:         `A study mentor chat service backed by an OpenAI-compatible completion API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// Systemd units provide the environment themselves.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return setupLogger(viper.GetString("mode"), viper.GetString("log-level"))
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile := loadProfile()
			if err := instanceProfile.Validate(); err != nil {
				printConfigError(err)
				return errors.New("invalid configuration")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), terminationSignals...)
			defer stop()

			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()

			if err := storeInstance.Migrate(ctx); err != nil {
				return errors.Wrap(err, "failed to migrate")
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				return errors.Wrap(err, "failed to create server")
			}

			printGreetings(instanceProfile)
			return service.Group{s, s.Sessions()}.Run(ctx)
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile := loadProfile()
			if err := instanceProfile.ValidateStore(); err != nil {
				return err
			}

			storeInstance, err := openStore(cmd.Context(), instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()

			if !viper.GetBool("status") {
				if err := storeInstance.Migrate(cmd.Context()); err != nil {
					return errors.Wrap(err, "failed to migrate")
				}
			}
			lines, err := storeInstance.MigrationStatus()
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(version.StringFull())
			atLeast := viper.GetString("at-least")
			if atLeast == "" {
				return nil
			}
			if !version.IsValid(atLeast) {
				return errors.Errorf("invalid version %q", atLeast)
			}
			if !version.IsVersionGreaterOrEqualThan(version.Version, atLeast) {
				return errors.Errorf("version %s is older than %s", version.Version, atLeast)
			}
			return nil
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("log-level", "info")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	migrateCmd.Flags().Bool("status", false, "only print the migration status")
	versionCmd.Flags().String("at-least", "", "fail unless the version is at least this one")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "log-level"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	if err := viper.BindPFlag("status", migrateCmd.Flags().Lookup("status")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("at-least", versionCmd.Flags().Lookup("at-least")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("studychat")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func loadProfile() *profile.Profile {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	return instanceProfile
}

func openStore(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		printDatabaseError(err, instanceProfile)
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	slog.DebugContext(ctx, "database opened", "driver", instanceProfile.Driver)
	return store.New(dbDriver, instanceProfile), nil
}

func setupLogger(mode, level string) error {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if mode == "prod" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("StudyChat %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Completion model: %s\n", profile.LLMModel)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
	fmt.Println()
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func printConfigError(err error) {
	fmt.Fprintln(os.Stderr, "\nConfiguration is incomplete:")
	fmt.Fprintln(os.Stderr, err.Error())
	if _, statErr := os.Stat(".env"); statErr != nil {
		fmt.Fprintln(os.Stderr, "Tip: create a .env file with the STUDYCHAT_* settings for local runs.")
	}
}

// printDatabaseError provides user-friendly error messages for database connection issues
func printDatabaseError(err error, profile *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nDatabase connection failed")

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "PostgreSQL is not reachable. Start it, or run with --driver=sqlite --data=./data")
	case strings.Contains(errMsg, "SSL is not enabled") || strings.Contains(errMsg, "sslmode"):
		fmt.Fprintln(os.Stderr, "Add ?sslmode=disable to your DSN.")
	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "Check the credentials in STUDYCHAT_DSN.")
	case strings.Contains(errMsg, "database") && strings.Contains(errMsg, "does not exist"):
		fmt.Fprintln(os.Stderr, "Create the database first, for example: CREATE DATABASE studychat;")
	default:
		fmt.Fprintln(os.Stderr, "Error:", errMsg)
	}
	if profile.Driver == "sqlite" {
		fmt.Fprintf(os.Stderr, "SQLite file: %s\n", profile.DSN)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("studychat exited", "error", err)
		os.Exit(1)
	}
}
