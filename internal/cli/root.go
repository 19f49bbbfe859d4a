package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/prism-answer/internal/bootstrap"
	"github.com/kirillkom/prism-answer/internal/config"
	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
	"github.com/kirillkom/prism-answer/internal/observability/logging"
)

// services is what the subcommands need from a wired application.
type services struct {
	answers ports.AnswerService
	cache   ports.CacheAdmin
	indexer ports.ChunkIndexer
	rules   []domain.SectionBoostRule
	close   func()
}

type opener func(ctx context.Context) (*services, error)

func openApp(ctx context.Context) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// stdout is reserved for command output.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, cfg.ServiceName, cfg.LogLevel))

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &services{
		answers: app.AnswerUC,
		cache:   app.CacheUC,
		indexer: app.IndexUC,
		rules:   app.SectionRules,
		close:   app.Close,
	}, nil
}

// Execute runs the prism command line.
func Execute(ctx context.Context) error {
	return newRootCommand(openApp).ExecuteContext(ctx)
}

type rootState struct {
	open    opener
	cfgFile string
	output  string
	svc     *services
}

func newRootCommand(open opener) *cobra.Command {
	state := &rootState{open: open}

	root := &cobra.Command{
		Use:   "prism",
		Short: "Grounded question answering over indexed papers",
		Long: `prism answers questions from an indexed paper corpus. Every answer cites the
passages it relies on, and a second pass checks each sentence against them.

Configuration comes from defaults, the YAML file named by --config or
CONFIG_FILE, .env, and the process environment, in increasing priority.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch state.output {
			case "json", "yaml":
			default:
				return fmt.Errorf("--output must be json or yaml, got %q", state.output)
			}
			if state.cfgFile != "" {
				if err := os.Setenv("CONFIG_FILE", state.cfgFile); err != nil {
					return err
				}
			}
			svc, err := state.open(cmd.Context())
			if err != nil {
				return err
			}
			state.svc = svc
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if state.svc != nil && state.svc.close != nil {
				state.svc.close()
			}
		},
	}

	root.PersistentFlags().StringVar(&state.cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().StringVarP(&state.output, "output", "o", "json", "output format: json or yaml")

	root.AddCommand(
		newAskCommand(state),
		newCacheCommand(state),
		newRulesCommand(state),
		newIndexCommand(state),
	)
	return root
}

// render writes v in the selected format. YAML goes through the JSON
// encoding so both formats share field names.
func render(w io.Writer, format string, v any) error {
	if format != "yaml" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
