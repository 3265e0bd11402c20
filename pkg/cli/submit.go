package cli

import (
	"context"

	"github.com/elelem/visibility/pkg/usecase/visibility"
	"github.com/urfave/cli/v3"
)

func submitCommand() *cli.Command {
	var (
		cfg       config
		query     string
		brand     string
		userID    string
		text      string
		inputPath string
		prompt    string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "User query that produced the LLM response",
			Destination: &query,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "brand",
			Aliases:     []string{"b"},
			Usage:       "Brand name to score",
			Destination: &brand,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "Optional user ID stored with the query record",
			Sources:     cli.EnvVars("VISIBILITY_USER_ID"),
			Destination: &userID,
		},
	}
	flags = append(flags, textFlags(&text, &inputPath, &prompt)...)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, scoreFlags(&cfg)...)

	return &cli.Command{
		Name:  "submit",
		Usage: "Record a query as pending, then analyze its response under the assigned ID",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, c.Root().ErrWriter)

			if prompt == "" && text == "" && inputPath == "" {
				// the query itself is the prompt when no response is supplied
				prompt = query
			}
			raw, err := cfg.responseText(ctx, text, inputPath, prompt)
			if err != nil {
				return err
			}

			uc, cleanup, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer cleanup.Close()

			outcome, err := uc.SubmitAndAnalyze(ctx, &visibility.SubmitInput{
				UserQuery: query,
				BrandName: brand,
				RawText:   raw,
				UserID:    userID,
			})
			if outcome != nil {
				if perr := printJSON(c.Root().Writer, outcome); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}
