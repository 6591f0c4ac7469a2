package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/uatax/internal/buildinfo"
	"github.com/cleared-dev/uatax/internal/config"
	"github.com/cleared-dev/uatax/internal/rates"
	"github.com/cleared-dev/uatax/internal/statement"
	"github.com/cleared-dev/uatax/internal/tax"
)

// ResultLabel prefixes the computed amount on stdout.
const ResultLabel = "Your tax amount is UAH"

// NewRootCommand creates the uatax CLI command.
func NewRootCommand() *cobra.Command {
	var (
		taxPercent = percentValue(5)
		configPath string
		endpoint   string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "uatax STATEMENTS_FILEPATH",
		Short: "Get UA taxes amounts in no time",
		Long: `Computes the flat tax due on the incoming payments of a PrivatBank statement.

STATEMENTS_FILEPATH is the "statements.xls" document downloaded from the
PrivatBank client interface (an HTML export). Each payment is converted to
hryvnias at the NBU USD rate of its date.`,
		Version: buildinfo.String(),
		Args:    cobra.ExactArgs(1),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("tax-percent") {
				cfg.TaxPercent = int(taxPercent)
			}
			if flags.Changed("endpoint") {
				cfg.Rates.Endpoint = endpoint
			}
			if verbose {
				cfg.Log.Level = "debug"
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return runTax(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args[0])
		},
	}

	cmd.Flags().Var(&taxPercent, "tax-percent", "tax percent")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a uatax.yaml file")
	cmd.Flags().StringVar(&endpoint, "endpoint", rates.DefaultEndpoint, "exchange rate service endpoint")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log rate lookups and conversions to stderr")

	return cmd
}

// runTax expects cfg to be validated.
func runTax(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, path string) error {
	logger, err := newLogger(stderr, cfg)
	if err != nil {
		return err
	}

	// Zero timeout means none.
	httpClient := &http.Client{Timeout: time.Duration(cfg.Rates.Timeout)}
	var provider rates.Provider = rates.NewNBUClient(cfg.Rates.Endpoint, httpClient, logger)
	var cache *rates.Cache
	if cfg.Rates.CacheSize > 0 {
		cache, err = rates.NewCache(provider, cfg.Rates.CacheSize)
		if err != nil {
			return err
		}
		provider = cache
	}

	st, err := statement.Open(path)
	if err != nil {
		return err
	}
	logger.Debug("statement parsed", slog.String("path", path), slog.Int("rows", st.Rows()))

	amount, err := tax.NewCalculator(provider, logger).Amount(ctx, st.Payments(), cfg.TaxPercent)
	if err != nil {
		return fmt.Errorf("computing tax for %s: %w", path, err)
	}
	if cache != nil {
		logger.Debug("rate lookups memoized", slog.Int("dates", cache.Len()))
	}

	_, err = fmt.Fprintln(stdout, ResultLabel, amount.StringFixed(tax.Places))
	return err
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
