// internal/cli/chat.go
package ragbot

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mwiater/ragbot/internal/apiclient"
	"github.com/mwiater/ragbot/internal/pipeline"
	"github.com/mwiater/ragbot/internal/tui"
)

var startChat = tui.Run

var chatLocal bool

// chatCmd represents the 'chat' command.
var chatCmd = &cobra.Command{
	Use:         "chat",
	Short:       "Start an interactive chat about the document",
	Long:        `The 'chat' command starts a terminal chat session. Questions go to the gateway at API_BASE_URL, or are answered in-process with --local.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{quietLogAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if !chatLocal {
			client := apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout()*2)
			return startChat(cmd.Context(), client, tui.Info{Document: cfg.DocumentPath, Backend: cfg.APIBaseURL})
		}

		p, err := newPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		return startChat(cmd.Context(), pipelineAsker{p}, tui.Info{Document: cfg.DocumentPath, Backend: "local " + cfg.RAGModel})
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatLocal, "local", false, "answer in-process instead of calling the gateway")
	rootCmd.AddCommand(chatCmd)
}

// pipelineAsker answers chat questions against the configured document.
type pipelineAsker struct {
	p *pipeline.Pipeline
}

func (a pipelineAsker) Ask(ctx context.Context, question string) (string, error) {
	answer, err := a.p.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	return answer.Text, nil
}
