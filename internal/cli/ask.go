// internal/cli/ask.go
package ragbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/ragbot/internal/apiclient"
	"github.com/mwiater/ragbot/internal/appconfig"
	"github.com/mwiater/ragbot/internal/util"
)

var (
	askRemote  bool
	askSources bool
)

var (
	questionLabel = color.New(color.FgCyan, color.Bold).SprintFunc()
	answerLabel   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failedLabel   = color.New(color.FgRed, color.Bold).SprintFunc()
	sourceLabel   = color.New(color.FgHiBlack).SprintFunc()
)

// askResult is one answered question, from either backend.
type askResult struct {
	answer  string
	sources []apiclient.Source
}

// askCmd answers each argument as a separate question.
var askCmd = &cobra.Command{
	Use:   "ask <question> [question...]",
	Short: "Answer questions about the configured document",
	Long:  `The 'ask' command answers each argument as a separate question. Questions run in-process against DOCUMENT_PATH, or against a running gateway at API_BASE_URL with --remote.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		ask, closeFn, err := newAskFunc(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		failed := runQuestions(cmd.Context(), cmd.OutOrStdout(), ask, args)
		if failed > 0 {
			return fmt.Errorf("%d of %d questions failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askRemote, "remote", false, "send questions to the gateway at API_BASE_URL")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "print the retrieved chunks with each answer")
	rootCmd.AddCommand(askCmd)
}

type askFunc func(ctx context.Context, question string) (askResult, error)

func newAskFunc(ctx context.Context, cfg appconfig.Config) (askFunc, func(), error) {
	if askRemote {
		client := apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout()*2)
		return func(ctx context.Context, q string) (askResult, error) {
			resp, err := client.Query(ctx, q, askSources)
			if err != nil {
				return askResult{}, err
			}
			return askResult{answer: resp.Answer, sources: resp.Sources}, nil
		}, func() {}, nil
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	ask := func(ctx context.Context, q string) (askResult, error) {
		answer, err := p.Ask(ctx, q)
		if err != nil {
			return askResult{}, err
		}
		res := askResult{answer: answer.Text}
		for _, r := range answer.Sources {
			res.sources = append(res.sources, apiclient.Source{
				Page:     r.Chunk.Page,
				Sequence: r.Chunk.Sequence,
				Score:    r.Score,
				Text:     r.Chunk.Text,
			})
		}
		return res, nil
	}
	return ask, func() { _ = p.Close() }, nil
}

// runQuestions prints each question and its answer, and returns how many failed.
func runQuestions(ctx context.Context, out io.Writer, ask askFunc, questions []string) int {
	failed := 0
	for i, q := range questions {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s %s\n", questionLabel("Q:"), q)
		if strings.TrimSpace(q) == "" {
			failed++
			fmt.Fprintf(out, "%s Question cannot be empty\n", failedLabel("!"))
			continue
		}

		res, err := ask(ctx, q)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s %s\n", failedLabel("!"), describeFailure(err))
			continue
		}
		fmt.Fprintf(out, "%s %s\n", answerLabel("A:"), res.answer)
		if askSources {
			for _, s := range res.sources {
				fmt.Fprintln(out, sourceLabel(fmt.Sprintf("   [p%d #%d %.3f] %s", s.Page, s.Sequence, s.Score, util.Snippet(s.Text, 100))))
			}
		}
	}
	return failed
}

func describeFailure(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
