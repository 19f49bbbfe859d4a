package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/prism-answer/internal/config"
	"github.com/kirillkom/prism-answer/internal/core/domain"
)

const maxChunkLineBytes = 4 << 20

func newAskCommand(state *rootState) *cobra.Command {
	var (
		topK        int
		documentIDs []string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with cited, validated evidence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answer, err := state.svc.answers.Answer(cmd.Context(), domain.AnswerRequest{
				Query:       strings.Join(args, " "),
				TopK:        topK,
				DocumentIDs: documentIDs,
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), state.output, answer)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "maximum passages to retrieve (default from config)")
	cmd.Flags().StringSliceVar(&documentIDs, "document-id", nil, "restrict retrieval to a document id (repeatable)")
	return cmd
}

func newCacheCommand(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the LLM response cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache hit and miss counters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				stats, err := state.svc.cache.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), state.output, stats)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every cached response and notify peer processes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				deleted, err := state.svc.cache.Clear(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), state.output, map[string]any{"status": "cleared", "deleted": deleted})
			},
		},
	)
	return cmd
}

func newRulesCommand(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the active section boost rules as YAML",
		Long: `Print the active section boost rules in the format RAG_SECTION_RULES_PATH
accepts, so the output can be edited and loaded back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := config.MarshalSectionRules(state.svc.rules)
			if err != nil {
				return fmt.Errorf("encode rules: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}

func newIndexCommand(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "index <chunks.jsonl>",
		Short: "Load pre-segmented chunks into the vector store",
		Long: `Load chunks produced by an external segmenter. Each line is a JSON object
with chunk_id, document_id, text, section_type, chunk_index and an optional
page. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			chunks, err := readChunks(in)
			if err != nil {
				return err
			}
			indexed, err := state.svc.indexer.Index(cmd.Context(), chunks)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), state.output, map[string]any{"indexed": indexed})
		},
	}
}

// readChunks parses JSON Lines, skipping blank lines.
func readChunks(r io.Reader) ([]domain.Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxChunkLineBytes)

	var chunks []domain.Chunk
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var c domain.Chunk
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return chunks, nil
}
