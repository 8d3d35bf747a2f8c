package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/feeschedule/internal/config"
	"github.com/gyeh/feeschedule/internal/exitcode"
	"github.com/gyeh/feeschedule/internal/logging"
)

var (
	cfg = config.Default()
	log = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "feeload",
	Short: "Fee-schedule PDF → Postgres loader",
	Long: "Locates published fee-schedule PDFs, extracts their tables, and reconciles the rows " +
		"against Postgres one document at a time.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", "", "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.ListingURL, "listing-url", cfg.ListingURL, "Page listing the fee-schedule documents (or set FEELOAD_LISTING_URL)")
	pf.StringVar(&cfg.ConfigFile, "config", "", "YAML file with header variants, link filter and fetch tuning")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	pf.Int32Var(&cfg.MaxConns, "max-conns", 0, "Maximum pool connections (0 keeps the driver default)")
}

// setup loads .env and the YAML overlay, applies environment fallbacks and
// builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	envErr := godotenv.Load()

	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("FEELOAD_LISTING_URL"); v != "" && !cmd.Flags().Changed("listing-url") {
		cfg.ListingURL = v
	}

	log = logging.Setup(cfg.LogFormat, cfg.LogLevel)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn().Err(envErr).Msg("could not read .env")
	}

	if cfg.ConfigFile != "" {
		if err := cfg.LoadFromFile(cfg.ConfigFile); err != nil {
			return fail(exitcode.ConfigError, err)
		}
		log.Debug().Str("config", cfg.ConfigFile).Int("header_variants", len(cfg.HeaderVariants)).Msg("loaded config file")
	}
	return nil
}
