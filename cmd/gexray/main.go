// gexray — dealer gamma exposure analytics for index options.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovonacci/gexray/api"
	"github.com/vovonacci/gexray/internal/config"
	"github.com/vovonacci/gexray/internal/datasource"
	"github.com/vovonacci/gexray/internal/engine"
	"github.com/vovonacci/gexray/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gexray",
	Short: "gexray — dealer gamma exposure analytics for index options",
	Long: `gexray computes dealer gamma exposure (GEX) profiles from an options
chain snapshot: per-strike mass bars, call resistance / put support,
the HVL gamma-flip level, and volatility-scaled expected-move bands.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real env vars win either way.
		_ = godotenv.Load()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// newEngine wires the vendor client into an analytics engine.
func newEngine() (*engine.Engine, error) {
	if cfg.Polygon.APIKey == "" {
		return nil, fmt.Errorf("no Polygon API key configured (set GEXRAY_POLYGON_API_KEY or POLY_API_KEY)")
	}
	src := datasource.NewPolygon(cfg.Polygon.APIKey, cfg.Polygon.BaseURL)
	return engine.New(cfg, src), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gexray %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting gexray API server on %s\n", addr)
		return api.NewServer(cfg, eng).ListenAndServe(addr)
	},
}

// --- Levels Command ---

var levelsCmd = &cobra.Command{
	Use:   "levels [ticker]",
	Short: "Print key GEX levels for a ticker",
	Long:  "Compute and print call resistance, put support, HVL and expected-move bands.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := tickerArg(args)
		spot, _ := cmd.Flags().GetFloat64("spot")

		eng, err := newEngine()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		snap, err := eng.Snapshot(ctx, ticker, spot)
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}

		fmt.Printf("🎯 GEX Levels: %s\n", snap.Ticker)
		fmt.Printf("   Market Status: %s\n", utils.MarketStatus())
		fmt.Printf("   As of:         %s\n", utils.FormatDateTimeNY(time.UnixMilli(snap.AsOfMs)))
		fmt.Printf("   Spot:          %.2f\n", snap.Spot)
		fmt.Println()
		fmt.Println("  All expirations:")
		fmt.Printf("    Call Resistance: %s\n", fmtLevel(snap.Levels.CallResistance))
		fmt.Printf("    Put Support:     %s\n", fmtLevel(snap.Levels.PutSupport))
		fmt.Printf("    HVL:             %s\n", fmtLevel(snap.Levels.HVL))
		fmt.Println()
		fmt.Printf("  0DTE (%s):\n", strOr(snap.ZeroDTEExpiry, "no expiry today"))
		fmt.Printf("    Call Resistance: %s\n", fmtLevel(snap.Levels.ZeroDTE.CallResistance))
		fmt.Printf("    Put Support:     %s\n", fmtLevel(snap.Levels.ZeroDTE.PutSupport))
		fmt.Printf("    HVL:             %s\n", fmtLevel(snap.Levels.ZeroDTE.HVL))
		if len(snap.TopPuts) > 0 {
			fmt.Println("    Top put masses:")
			for _, r := range snap.TopPuts {
				fmt.Printf("      %8.2f  %.3e\n", r.Strike, r.Mass)
			}
		}
		fmt.Println()

		regime := "negative ⚠️"
		if snap.Bands.GammaPositive {
			regime = "positive"
		}
		fmt.Printf("  Gamma regime: %s\n", regime)
		fmt.Printf("  Sigma (1d):   realized=%s implied=%s base=%s\n",
			fmtSigma(snap.Bands.Sigma.Realized),
			fmtSigma(snap.Bands.Sigma.Implied1D),
			fmtSigma(snap.Bands.Sigma.Base))
		if b := snap.Bands.Spot; b != nil {
			fmt.Printf("  Spot bands:   1σ [%.2f, %.2f]  2σ [%.2f, %.2f]  3σ [%.2f, %.2f]\n",
				b.One.Min, b.One.Max, b.Two.Min, b.Two.Max, b.Three.Min, b.Three.Max)
		}
		if b := snap.Bands.HVL; b != nil {
			fmt.Printf("  HVL bands:    1σ [%.2f, %.2f]  2σ [%.2f, %.2f]  3σ [%.2f, %.2f]\n",
				b.One.Min, b.One.Max, b.Two.Min, b.Two.Max, b.Three.Min, b.Three.Max)
		}
		return nil
	},
}

func init() {
	levelsCmd.Flags().Float64("spot", 0, "spot price override")
}

// --- Snapshot Command ---

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [ticker]",
	Short: "Print the full GEX snapshot as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := tickerArg(args)
		spot, _ := cmd.Flags().GetFloat64("spot")

		eng, err := newEngine()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		snap, err := eng.Snapshot(ctx, ticker, spot)
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	snapshotCmd.Flags().Float64("spot", 0, "spot price override")
}

// --- helpers ---

func tickerArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "I:SPX"
}

func fmtLevel(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtSigma(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.4f", *v)
}

func strOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
