// Package main provides the entry points for albumbridge: the Lambda handler and the local CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/urfave/cli/v3"
)

const lambdaFunctionNameEnv = "AWS_LAMBDA_FUNCTION_NAME"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if os.Getenv(lambdaFunctionNameEnv) != "" {
		lambda.Start(handler)
		return
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newApp builds the local command line interface.
func newApp() *cli.Command {
	return &cli.Command{
		Name:  "albumbridge",
		Usage: "Import exported photo albums into the gallery",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Create a sample configuration file",
				Action: func(context.Context, *cli.Command) error {
					return runInit()
				},
			},
			{
				Name:  "auth",
				Usage: "Authorize albumbridge with the gallery",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runGalleryAuth(ctx)
				},
			},
			{
				Name:  "import",
				Usage: "Import the albums and photos of an export manifest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "manifest",
						Aliases:  []string{"m"},
						Usage:    "Path to the export manifest JSON file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "job-id",
						Usage: "Job ID to start or resume (default: the manifest export ID)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Log gallery writes instead of performing them",
					},
				},
				Action: runImport,
			},
		},
	}
}
