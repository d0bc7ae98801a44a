package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/executordao"
	"github.com/axiomesh/executordao/node"
	"github.com/axiomesh/executordao/repo"
	"github.com/urfave/cli/v2"
)

var runCMD = &cli.Command{
	Name:  "run",
	Usage: "Construct the DAO if needed and replay a script of blocks against it",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "script",
			Usage:    "YAML script with payloads and blocks of transactions",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "construct",
			Usage: "Run the configured bootstrap proposal before the script",
			Value: true,
		},
	},
	Action: run,
}

func run(ctx *cli.Context) error {
	r, err := loadRepo(ctx)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return fmt.Errorf("log initialize: %w", err)
	}

	printVersion()

	script, err := node.LoadScript(ctx.String("script"))
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := node.New(sigCtx, r.Config)
	if err != nil {
		return fmt.Errorf("new node error: %w", err)
	}
	defer func() {
		if err := n.Stop(); err != nil {
			fmt.Println("stop node failed:", err)
		}
	}()

	if ctx.Bool("construct") {
		if err := n.Construct(); err != nil {
			return err
		}
	}

	receipts, err := n.Apply(script)
	enc := json.NewEncoder(os.Stdout)
	for _, receipt := range receipts {
		if err := enc.Encode(receipt); err != nil {
			return err
		}
	}
	if err != nil {
		return fmt.Errorf("apply script: %w", err)
	}

	metrics, err := n.Metrics()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s %v\n", name, metrics[name])
	}
	return nil
}

func loadRepo(ctx *cli.Context) (*repo.Repo, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Load(p)
}

func printVersion() {
	fmt.Printf("ExecutorDAO version: %s-%s-%s\n", executordao.CurrentVersion, executordao.CurrentBranch, executordao.CurrentCommit)
	fmt.Printf("App build date: %s\n", executordao.BuildDate)
	fmt.Printf("System version: %s\n", executordao.Platform)
	fmt.Printf("Golang version: %s\n", executordao.GoVersion)
	fmt.Println()
}
