package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/alsassist/ai/observability/logging"
	"github.com/hrygo/alsassist/internal/errclass"
	"github.com/hrygo/alsassist/internal/profile"
	"github.com/hrygo/alsassist/internal/version"
	"github.com/hrygo/alsassist/server"
)

var (
	rootCmd = &cobra.Command{
		Use:   "alsassist",
		Short: `A conversational companion for people living with ALS and their caregivers.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide the environment themselves.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile, err := loadProfile()
			if err != nil {
				printConfigurationError(err)
				os.Exit(1)
			}

			ctx, cancel := context.WithCancel(context.Background())
			app, err := newApplication(ctx, instanceProfile)
			if err != nil {
				cancel()
				printConfigurationError(err)
				os.Exit(1)
			}

			s, err := server.NewServer(ctx, instanceProfile, app.api, app.metrics.Handler(), app.closers...)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// SIGTERM is what container runtimes and systemd send on stop.
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					slog.Error("failed to start server", "error", err)
					cancel()
				}
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			<-ctx.Done()
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)
	viper.SetDefault("log-level", "info")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory for the sqlite archive")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "log-level"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("alsassist")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(indexCmd, recordMetricsCmd)
}

// loadProfile assembles the profile from flags, environment and defaults,
// and installs the process logger.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:     viper.GetString("mode"),
		Addr:     viper.GetString("addr"),
		Port:     viper.GetInt("port"),
		Data:     viper.GetString("data"),
		Driver:   viper.GetString("driver"),
		DSN:      viper.GetString("dsn"),
		LogLevel: viper.GetString("log-level"),
		Version:  version.String(),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}

	format := logging.FormatText
	if !instanceProfile.IsDev() {
		format = logging.FormatJSON
	}
	logging.Setup(os.Stderr, format, instanceProfile.LogLevel)
	return instanceProfile, nil
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("alsassist %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Locale: %s\n", profile.Locale)
	fmt.Printf("Generation: %s (%s)\n", profile.LLMProvider, profile.LLMModel)
	if profile.IsSearchEnabled() {
		fmt.Printf("Resource search: %s\n", profile.EmbeddingModel)
	} else {
		fmt.Println("Resource search: disabled (set ALSASSIST_EMBEDDING_API_KEY)")
	}
	if profile.RedisURL == "" {
		fmt.Println("Sessions: in-process cache")
	} else {
		fmt.Println("Sessions: redis")
	}

	host := profile.Addr
	if host == "" {
		host = "localhost"
	}
	fmt.Printf("Server running on port %d\n", profile.Port)
	fmt.Printf("Chat API: http://%s:%d/api/v1/chat\n", host, profile.Port)
	fmt.Printf("Metrics:  http://%s:%d/metrics\n", host, profile.Port)
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func printConfigurationError(err error) {
	if errclass.Classify(err) == errclass.ClassConfiguration {
		fmt.Fprintln(os.Stderr, "Configuration error:", err)
		if _, statErr := os.Stat(".env"); statErr != nil {
			fmt.Fprintln(os.Stderr, "Tip: create a .env file with ALSASSIST_* settings (see .env.example)")
		}
		return
	}
	fmt.Fprintln(os.Stderr, "Startup failed:", err)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
