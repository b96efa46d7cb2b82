// internal/cli/index.go
package ragbot

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/ragbot/internal/registry"
	"github.com/mwiater/ragbot/internal/util"
	"github.com/mwiater/ragbot/internal/vectorstore"
)

var (
	indexRebuild bool
	indexPreview int
)

// indexCmd builds or loads the on-disk index for a document.
var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or load the vector index for a document",
	Long:  `The 'index' command builds the vector index for the given document, or DOCUMENT_PATH when no path is given. An existing index is loaded unless --rebuild is set. Use --preview N to print the first N stored chunks.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		path := cfg.DocumentPath
		if len(args) == 1 {
			path = args[0]
		}

		p, err := newPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		label := color.GreenString("Ready")
		var idx *vectorstore.Index
		if indexRebuild {
			label = color.GreenString("Rebuilt")
			idx, err = p.Rebuild(cmd.Context(), path)
		} else {
			idx, err = p.Registry().Ensure(cmd.Context(), path)
			if errors.Is(err, registry.ErrEmptyDocument) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s has no extractable text; no index was created\n", color.YellowString("Skipped"), path)
				return nil
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d chunks (%s/%s, %d dims) in %s\n",
			label, path, idx.Len(), idx.Provider(), idx.Model(), idx.Dimension(), idx.Dir())

		if indexPreview > 0 {
			chunks, err := idx.Chunks(cmd.Context())
			if err != nil {
				return err
			}
			printChunks(cmd.OutOrStdout(), chunks, indexPreview)
		}
		return nil
	},
}

func printChunks(out io.Writer, chunks []vectorstore.Chunk, limit int) {
	if limit > len(chunks) {
		limit = len(chunks)
	}
	for i, c := range chunks[:limit] {
		fmt.Fprintf(out, "\n%s page %d, chunk %d\n", color.CyanString("[%d]", i+1), c.Page, c.Sequence)
		fmt.Fprintln(out, util.Indent(util.WrapToWidth(c.Text, 76), "    "))
	}
	if limit < len(chunks) {
		fmt.Fprintf(out, "\n... %d more chunks\n", len(chunks)-limit)
	}
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "discard any stored index and rebuild it")
	indexCmd.Flags().IntVar(&indexPreview, "preview", 0, "print the first N stored chunks")
	rootCmd.AddCommand(indexCmd)
}
