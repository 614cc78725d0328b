// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP API server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Bind address (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Bind port (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// tokenCommand groups operator credential debugging commands.
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint and inspect bearer credentials",
		Commands: []*cli.Command{
			{
				Name:  "mint",
				Usage: "Issue a credential for a known user (debugging)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.StringFlag{
						Name:     "user",
						Usage:    "Local user ID to embed as subject",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "email",
						Usage: "User email claim",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "User display name claim",
					},
					&cli.StringFlag{
						Name:     "access-token",
						Usage:    "Upstream access token to embed",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "refresh-token",
						Usage: "Upstream refresh token to embed",
					},
				},
				Action: r.TokenMint,
			},
			{
				Name:  "inspect",
				Usage: "Verify a credential and print its identity",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "credential",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.TokenInspect,
			},
		},
	}
}
