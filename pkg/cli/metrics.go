package cli

import (
	"context"
	"fmt"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/usecase/visibility"
	"github.com/urfave/cli/v3"
)

func metricsCommand() *cli.Command {
	var (
		cfg    config
		brand  string
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "brand",
			Aliases:     []string{"b"},
			Usage:       "Brand name (matched case-insensitively)",
			Destination: &brand,
			Required:    true,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Output as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "metrics",
		Usage: "Show query count and average visibility of a brand from the historical sink",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, c.Root().ErrWriter)

			env, err := model.ParseEnvironment(cfg.environment)
			if err != nil {
				return err
			}

			sink, closeSink, err := cfg.newSink(ctx, env)
			if err != nil {
				return err
			}
			defer closeSink()

			uc, err := visibility.New(visibility.Capabilities{}, visibility.Stores{Sink: sink})
			if err != nil {
				return err
			}

			metrics, err := uc.Metrics(ctx, brand)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(c.Root().Writer, metrics)
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Brand:            %s\n", metrics.BrandName)
			fmt.Fprintf(w, "Total queries:    %d\n", metrics.TotalQueries)
			fmt.Fprintf(w, "Average score:    %.2f\n", metrics.AverageVisibilityScore)
			fmt.Fprintf(w, "Source:           %s\n", sink.Name())
			return nil
		},
	}
}
