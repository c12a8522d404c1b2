package minerva

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/minerva/pkg/config"
	"github.com/soundprediction/minerva/pkg/logger"
	"github.com/soundprediction/minerva/pkg/telemetry"
)

var (
	cfgFile string
	cfg     *config.Config
	log     = slog.Default()
	tracker *telemetry.ParquetHandler

	rootCmd = &cobra.Command{
		Use:   "minerva",
		Short: "Minerva: entity linking and graphs for annotated TEI corpora",
		Long: `Minerva links the named-entity mentions of an annotated TEI corpus to
Wikidata identifiers, then builds co-occurrence and opinion graphs over the
corpus for visualization.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if tracker != nil {
				if err := tracker.Close(); err != nil {
					fmt.Fprintln(os.Stderr, "failed to flush telemetry:", err)
				}
			}
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.minerva.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json, logfmt)")
	rootCmd.PersistentFlags().String("telemetry-parquet-path", "", "directory for the parquet trail of warnings and errors")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("telemetry.parquet_path", rootCmd.PersistentFlags().Lookup("telemetry-parquet-path"))
}

// initConfig reads in the .env file, the config file and ENV variables if set.
func initConfig() {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".minerva")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setup loads the configuration and builds the logger shared by every command.
func setup() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	handler := logger.NewHandler(os.Stderr, logger.Options{
		Level:           logger.ParseLevel(cfg.Log.Level),
		Format:          cfg.Log.Format,
		ReportTimestamp: true,
	})
	if cfg.Telemetry.ParquetPath != "" {
		tracker, err = telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Warning: failed to initialize error tracking:", err)
		} else {
			handler = tracker
		}
	}
	log = slog.New(handler)
	slog.SetDefault(log)
	return nil
}
