package cli

import (
	"context"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/usecase/visibility"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	var (
		cfg      config
		archived bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "archived",
			Aliases:     []string{"a"},
			Usage:       "Show the archived analysis snapshot instead of the live status",
			Destination: &archived,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:      "status",
		Usage:     "Show processing status of a submitted response",
		ArgsUsage: "<response-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, c.Root().ErrWriter)

			if c.Args().Len() != 1 {
				return goerr.New("response-id is required")
			}
			id := model.ResponseID(c.Args().First())

			if archived {
				archive, err := cfg.newArchive(ctx)
				if err != nil {
					return err
				}
				if archive == nil {
					return goerr.Wrap(model.ErrStoreNotInitialized, "archive-bucket is required")
				}
				defer func() { _ = archive.Close() }()

				uc, err := visibility.New(visibility.Capabilities{}, visibility.Stores{Archive: archive})
				if err != nil {
					return err
				}
				snapshot, err := uc.Archived(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(c.Root().Writer, snapshot)
			}

			status, err := cfg.newStatus(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = status.Close(context.Background()) }()

			uc, err := visibility.New(visibility.Capabilities{}, visibility.Stores{Status: status})
			if err != nil {
				return err
			}

			details, err := uc.Status(ctx, id)
			if err != nil {
				return err
			}

			return printJSON(c.Root().Writer, details)
		},
	}
}
