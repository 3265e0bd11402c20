package cli

import (
	"context"
	"fmt"

	"github.com/elelem/visibility/pkg/interfaces"
	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/usecase/visibility"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func similarCommand() *cli.Command {
	var (
		cfg        config
		responseID string
		text       string
		limit      int64
		threshold  float64
		asJSON     bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "response-id",
			Aliases:     []string{"r"},
			Usage:       "Response ID of an analyzed response to find neighbors of",
			Destination: &responseID,
		},
		&cli.StringFlag{
			Name:        "text",
			Aliases:     []string{"t"},
			Usage:       "Free text to embed and search with",
			Destination: &text,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of similar responses to display",
			Value:       10,
			Sources:     cli.EnvVars("VISIBILITY_SIMILAR_LIMIT"),
			Destination: &limit,
		},
		&cli.FloatFlag{
			Name:        "threshold",
			Usage:       "Cosine distance threshold (0.0-2.0, lower is more similar)",
			Value:       2.0,
			Sources:     cli.EnvVars("VISIBILITY_SIMILAR_THRESHOLD"),
			Destination: &threshold,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Output as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "similar",
		Usage: "Find analyzed responses similar to a response or a text",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, c.Root().ErrWriter)

			if (responseID == "") == (text == "") {
				return goerr.New("exactly one of --response-id or --text is required")
			}
			if limit <= 0 {
				return goerr.New("limit must be positive", goerr.V("limit", limit))
			}

			index, err := cfg.newIndex(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = index.Close() }()

			var caps visibility.Capabilities
			if text != "" {
				var embedder interfaces.EmbeddingProvider
				embedder, err = cfg.newEmbedder(ctx)
				if err != nil {
					return err
				}
				caps.Embedder = embedder
			}

			uc, err := visibility.New(caps, visibility.Stores{Index: index})
			if err != nil {
				return err
			}

			var results []*model.SimilarResponse
			if text != "" {
				results, err = uc.Similar(ctx, text, int(limit))
			} else {
				results, err = uc.SimilarTo(ctx, model.ResponseID(responseID), int(limit))
			}
			if err != nil {
				return goerr.Wrap(err, "failed to search similar responses")
			}

			filtered := make([]*model.SimilarResponse, 0, len(results))
			for _, r := range results {
				if r.Distance <= threshold {
					filtered = append(filtered, r)
				}
			}

			if asJSON {
				return printJSON(c.Root().Writer, filtered)
			}

			w := c.Root().Writer
			if len(filtered) == 0 {
				fmt.Fprintf(w, "No similar responses found\n")
				return nil
			}

			fmt.Fprintf(w, "Found %d similar responses:\n\n", len(filtered))
			for i, r := range filtered {
				doc := r.Document
				fmt.Fprintf(w, "%d. %s (distance %.4f)\n", i+1, doc.ResponseID, r.Distance)
				fmt.Fprintf(w, "   Brand: %s\n", doc.BrandKeyword)
				fmt.Fprintf(w, "   Visibility: %.2f\n", doc.VisibilityScore)
				if doc.Keywords != "" {
					fmt.Fprintf(w, "   Keywords: %s\n", doc.Keywords)
				}
				fmt.Fprintf(w, "\n")
			}

			return nil
		},
	}
}
