package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/veldt-labs/pagemap/checkpoint"
	"github.com/veldt-labs/pagemap/pagealloc"
)

var Info = cli.Command{
	Action:    info,
	Name:      "info",
	Usage:     "lists the checkpoints of a checkpoint store",
	ArgsUsage: "<directory>",
}

func info(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing checkpoint store directory")
	}
	dir := context.Args().Get(0)

	store, err := checkpoint.NewStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	versions, err := store.Versions()
	if err != nil {
		return err
	}
	fmt.Printf("Store contains %d checkpoint(s):\n", len(versions))
	for _, version := range versions {
		record, err := store.Stat(version)
		if err != nil {
			return err
		}
		fmt.Printf("\tversion %d: %s backend, %d delta bytes\n",
			record.Version, backendName(record.Backend), record.DeltaBytes)
	}
	if last, exists, err := store.LastVersion(); err != nil {
		return err
	} else if exists {
		fmt.Printf("Last version: %d\n", last)
	}
	return nil
}

func backendName(kind pagealloc.BackendKind) string {
	switch kind {
	case pagealloc.BackendEmpty:
		return "empty"
	case pagealloc.BackendHeap:
		return "heap"
	case pagealloc.BackendMmap:
		return "mapped"
	}
	return fmt.Sprintf("unknown (%d)", kind)
}
