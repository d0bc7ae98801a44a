package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "ExecutorDAO"
	app.Usage = "Governance engine with one-shot proposals, voting and emergency teams"
	app.Compiled = time.Now()

	cli.VersionPrinter = func(c *cli.Context) {
		printVersion()
	}

	// global flags
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "repo",
			Usage: "ExecutorDAO storage repo path",
		},
	}

	app.Commands = []*cli.Command{
		configCMD,
		runCMD,
		stateCMD,
		eventsCMD,
		{
			Name:    "version",
			Aliases: []string{"v"},
			Usage:   "ExecutorDAO version",
			Action: func(ctx *cli.Context) error {
				printVersion()
				return nil
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
