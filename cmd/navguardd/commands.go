package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/config"
	"github.com/haukened/navguard/internal/guard/domain"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     appName,
		Short:   "Navigation guard daemon",
		Long:    "navguardd checks navigations against local site lists and a reputation service, and asks the user about unknown destinations.",
		Version: version,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(checkCmd())
	cmd.AddCommand(addCmd())
	cmd.AddCommand(statsCmd())
	cmd.AddCommand(importCmd())

	return cmd
}

// loadConfig loads configuration from the environment and configures
// global logging.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}
	return cfg, nil
}

// withSiteLists opens the site list database for a one-shot command.
func withSiteLists(source string, fn func(s *siteLists) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sites, err := openSiteLists(cfg, clock.RealClock{}, log.GetLogger(), source)
	if err != nil {
		return err
	}
	defer func() { _ = sites.Close() }()
	return fn(sites)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, navigation endpoint and prompt surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log.Info(map[string]any{
				"version":   version,
				"env":       cfg.Env,
				"log_level": cfg.Log.Level,
				"host":      cfg.Server.Host,
				"port":      cfg.Server.Port,
				"sites_db":  cfg.Sites.DB,
			}, "Starting navguard")

			app, err := buildApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}

			// Setup graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.Run(ctx); err != nil {
				return err
			}
			log.Info(nil, "navguard stopped gracefully")
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <url>",
		Short: "Look a URL up in the local site lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSiteLists("cli", func(s *siteLists) error {
				v, err := s.service.Check(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if v.MatchedRule != "" {
					fmt.Fprintf(out, "%s: %s (rule %s)\n", v.Domain, v.Category, v.MatchedRule)
				} else {
					fmt.Fprintf(out, "%s: %s\n", v.Domain, v.Category)
				}
				return nil
			})
		},
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "add <legitimate|suspicious> <url>",
		Short:     "Add a site to one of the lists",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"legitimate", "suspicious"},
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := listCategory(args[0])
			if err != nil {
				return err
			}
			return withSiteLists("cli", func(s *siteLists) error {
				add := s.service.AddLegitimate
				if category == domain.CategorySuspicious {
					add = s.service.AddSuspicious
				}
				res, err := add(args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Domain, res.Message)
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show site list counts and examples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSiteLists("cli", func(s *siteLists) error {
				st, err := s.service.Stats()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "legitimate: %d %v\n", st.Legitimate, st.LegitimateExamples)
				fmt.Fprintf(out, "suspicious: %d %v\n", st.Suspicious, st.SuspiciousExamples)
				return nil
			})
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <legitimate|suspicious> <[plain:|hosts:]path>...",
		Short: "Import list files into one of the lists",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := listCategory(args[0])
			if err != nil {
				return err
			}
			return withSiteLists("import", func(s *siteLists) error {
				var legitimate, suspicious []string
				if category == domain.CategoryLegitimate {
					legitimate = args[1:]
				} else {
					suspicious = args[1:]
				}
				n, err := s.service.Seed(legitimate, suspicious)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d new %s rules\n", n, category)
				return nil
			})
		},
	}
}

func listCategory(arg string) (domain.Category, error) {
	switch c := domain.ParseCategory(arg); c {
	case domain.CategoryLegitimate, domain.CategorySuspicious:
		return c, nil
	default:
		return "", fmt.Errorf("unknown list %q: want legitimate or suspicious", arg)
	}
}
