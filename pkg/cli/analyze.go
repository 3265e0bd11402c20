package cli

import (
	"context"
	"strings"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// textFlags returns flags that provide the LLM response text to analyze
func textFlags(text, inputPath, prompt *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "text",
			Aliases:     []string{"t"},
			Usage:       "Raw LLM response text",
			Destination: text,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to a file containing the raw LLM response",
			Destination: inputPath,
		},
		&cli.StringFlag{
			Name:        "generate",
			Aliases:     []string{"g"},
			Usage:       "Prompt sent to Gemini to produce the response instead of --text/--input",
			Destination: prompt,
		},
	}
}

// responseText resolves the raw text from flags, generating it with Gemini when a prompt is given
func (cfg *config) responseText(ctx context.Context, text, inputPath, prompt string) (string, error) {
	if prompt != "" {
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return "", err
		}
		generated, err := gemini.Generate(ctx, prompt)
		if err != nil {
			return "", goerr.Wrap(err, "failed to generate response text")
		}
		logging.From(ctx).Debug("response generated", "prompt", prompt, "length", len(generated))
		return generated, nil
	}

	raw, err := readText(text, inputPath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", goerr.New("one of --text, --input or --generate is required")
	}
	return raw, nil
}

func analyzeCommand() *cli.Command {
	var (
		cfg        config
		responseID string
		brand      string
		text       string
		inputPath  string
		prompt     string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "response-id",
			Aliases:     []string{"r"},
			Usage:       "Response ID shared by the index, status store and history",
			Sources:     cli.EnvVars("VISIBILITY_RESPONSE_ID"),
			Destination: &responseID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "brand",
			Aliases:     []string{"b"},
			Usage:       "Brand name to score",
			Destination: &brand,
			Required:    true,
		},
	}
	flags = append(flags, textFlags(&text, &inputPath, &prompt)...)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, scoreFlags(&cfg)...)

	return &cli.Command{
		Name:  "analyze",
		Usage: "Score an LLM response for a brand and persist the result",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, c.Root().ErrWriter)

			raw, err := cfg.responseText(ctx, text, inputPath, prompt)
			if err != nil {
				return err
			}

			uc, cleanup, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer cleanup.Close()

			outcome, err := uc.Analyze(ctx, &model.AnalysisRequest{
				ResponseID: model.ResponseID(responseID),
				BrandName:  brand,
				RawText:    raw,
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
