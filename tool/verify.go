package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/veldt-labs/pagemap/checkpoint"
)

var Verify = cli.Command{
	Action:    verify,
	Name:      "verify",
	Usage:     "re-computes the digests of all stored checkpoints",
	ArgsUsage: "<directory>",
}

func verify(context *cli.Context) error {
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
	corrupted := 0
	for _, version := range versions {
		if err := store.Verify(version); err != nil {
			fmt.Printf("\tversion %d: %v\n", version, err)
			corrupted++
		}
	}
	if corrupted > 0 {
		return fmt.Errorf("%d of %d checkpoint(s) corrupted", corrupted, len(versions))
	}
	fmt.Printf("All %d checkpoint(s) verified.\n", len(versions))
	return nil
}
