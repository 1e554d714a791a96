// cmd/COMMAND_NAME.go
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	jobsystem "github.com/Swind/go-job-system"
)

func COMMAND_NAMECommand() *cli.Command {
	return &cli.Command{
		Name:    "COMMAND_NAME",
		Aliases: []string{"SHORT"},
		Usage:   "Description",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   0,
				Usage:   "worker goroutines, 0 for one per CPU",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file path",
			},
		},

		Action: COMMAND_NAMEAction,
	}
}

func COMMAND_NAMEAction(c *cli.Context) error {
	// 1. Get flags
	cfg := jobsystem.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = jobsystem.LoadConfig(path); err != nil {
			return cli.Exit(fmt.Sprintf("load config: %v", err), 1)
		}
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}

	// 2. Validate (format only)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// 3. Run the work on the job system
	jobsystem.Init(cfg)
	defer jobsystem.Shutdown()

	// schedule units, wait for completion...

	// 4. Format output
	fmt.Println("done")

	return nil
}
