package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/axiomesh/executordao/core"
	"github.com/axiomesh/executordao/node"
	"github.com/urfave/cli/v2"
)

var stateCMD = &cli.Command{
	Name:  "state",
	Usage: "Inspect the persisted DAO state",
	Subcommands: []*cli.Command{
		{
			Name:   "show",
			Usage:  "Print the latest state snapshot",
			Action: showState,
		},
	},
}

var eventsCMD = &cli.Command{
	Name:  "events",
	Usage: "List the event log filtered by the events config section",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "from",
			Usage: "First block, overrides events.from_block",
		},
		&cli.Uint64Flag{
			Name:  "to",
			Usage: "Last block, overrides events.to_block",
		},
	},
	Action: listEvents,
}

func openNode(ctx *cli.Context) (*node.Node, error) {
	r, err := loadRepo(ctx)
	if err != nil {
		return nil, err
	}
	return node.New(ctx.Context, r.Config)
}

func showState(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.DB.Close()

	data, err := core.EncodeState(n.Engine.State())
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	fmt.Printf("height: %d\n", n.Chain.Height())
	fmt.Println(out.String())
	return nil
}

func listEvents(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.DB.Close()

	q, err := n.Query(ctx.Uint64("from"), ctx.Uint64("to"))
	if err != nil {
		return err
	}
	logs, err := n.FilterLogs(ctx.Context, q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, l := range logs {
		ev, err := node.DecodeEvent(l)
		if err != nil {
			return err
		}
		if err := enc.Encode(map[string]any{
			"height":  ev.Height,
			"tx":      l.TxHash.Hex(),
			"source":  n.Config.Name(ev.Source),
			"type":    ev.Type,
			"message": ev.Message,
			"fields":  ev.Fields,
		}); err != nil {
			return err
		}
	}
	return nil
}
