package appconfig

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the current configuration summary with secrets masked.
func ShowConfig(out io.Writer, file string, cfg Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults and environment).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	c := cfg.Redacted()
	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  API Listen:           %s\n", c.ListenAddr())
	fmt.Fprintf(out, "  API Base URL:         %s\n", c.APIBaseURL)
	fmt.Fprintf(out, "  Document:             %s\n", c.DocumentPath)
	fmt.Fprintf(out, "  Persist Folder:       %s\n", c.PersistFolder)
	fmt.Fprintf(out, "  Embedding Provider:   %s\n", c.EmbeddingProviderName())
	if c.EmbeddingProviderName() == ProviderLocal {
		fmt.Fprintf(out, "  Embedding Dimension:  %d\n", c.EmbeddingDimension)
	} else {
		fmt.Fprintf(out, "  Embedding Model:      %s\n", c.EmbeddingModel)
		fmt.Fprintf(out, "  Embedding URL:        %s\n", c.EmbeddingURL)
	}
	fmt.Fprintf(out, "  Embedding Cache:      %s\n", c.EmbeddingCacheFolder)
	fmt.Fprintf(out, "  Completion URL:       %s\n", c.RAGAPIURL)
	fmt.Fprintf(out, "  Completion Model:     %s\n", c.RAGModel)
	fmt.Fprintf(out, "  Completion API Key:   %s\n", displaySecret(c.RAGAPIKey))
	fmt.Fprintf(out, "  Completion Timeout:   %s\n", c.RequestTimeout())
	fmt.Fprintf(out, "  Top K:                %d\n", c.RAGTopK)
	fmt.Fprintf(out, "  Chunk Size:           %d\n", c.ChunkSize)
	fmt.Fprintf(out, "  Chunk Overlap:        %d\n", c.ChunkOverlap)
	fmt.Fprintf(out, "  Log File:             %s\n", c.LogFilePath())
	fmt.Fprintf(out, "  Debug:                %v\n", c.Debug)
}

// DumpConfig pretty-prints the redacted struct.
func DumpConfig(out io.Writer, cfg Config) {
	_, _ = pp.Fprintln(out, cfg.Redacted())
}

func displaySecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
