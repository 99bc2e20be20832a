// Treekernel is a small inspection tool for on-disk tree stores: it
// prints the head revision, the revision log, node content at a path,
// and storage statistics.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/attic-labs/kingpin"
	"github.com/dustin/go-humanize"

	"github.com/attic-labs/treekernel/kernel"
	"github.com/attic-labs/treekernel/state"
)

func main() {
	kingpin.EnableFileExpansion = false
	kingpin.CommandLine.HelpFlag.Short('h')
	app := kingpin.New("treekernel", "Inspect an on-disk tree store.")

	headCmd := app.Command("head", "Print the current head revision")
	headDir := addDirArg(headCmd)

	logCmd := app.Command("log", "List all committed revisions, newest first")
	logDir := addDirArg(logCmd)

	showCmd := app.Command("show", "Print the node at a path")
	showDir := addDirArg(showCmd)
	showPath := showCmd.Arg("path", "absolute node path").Required().String()
	showRev := showCmd.Flag("rev", "revision to read, defaults to head").String()

	statsCmd := app.Command("stats", "Print storage statistics")
	statsDir := addDirArg(statsCmd)

	ctx := context.Background()
	var err error
	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case headCmd.FullCommand():
		err = runHead(ctx, *headDir)
	case logCmd.FullCommand():
		err = runLog(ctx, *logDir)
	case showCmd.FullCommand():
		err = runShow(ctx, *showDir, *showPath, *showRev)
	case statsCmd.FullCommand():
		err = runStats(ctx, *statsDir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func addDirArg(cmd *kingpin.CmdClause) *string {
	return cmd.Arg("dir", "store directory").Required().String()
}

func openStore(dir string) (*kernel.LevelDBStore, error) {
	return kernel.NewLevelDBStore(dir)
}

func runHead(ctx context.Context, dir string) error {
	store, err := openStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	head, err := store.HeadRevision(ctx)
	if err != nil {
		return err
	}
	fmt.Println(head)
	return nil
}

func runLog(ctx context.Context, dir string) error {
	store, err := openStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	revs, err := store.Revisions(ctx)
	if err != nil {
		return err
	}
	for i := len(revs) - 1; i >= 0; i-- {
		fmt.Println(revs[i])
	}
	return nil
}

func runShow(ctx context.Context, dir, path, revSpec string) error {
	store, err := openStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	rev, err := store.HeadRevision(ctx)
	if err != nil {
		return err
	}
	if revSpec != "" {
		rev, err = kernel.ParseRevision(revSpec)
		if err != nil {
			return err
		}
	}

	ns, err := store.NodeState(ctx, path, rev)
	if err != nil {
		return err
	}
	printNode(ns, path)
	return nil
}

func printNode(ns *state.NodeState, path string) {
	fmt.Printf("%s {\n", path)
	for _, name := range ns.PropertyNames() {
		v, _ := ns.Property(name)
		fmt.Printf("  %s: %s\n", name, v)
	}
	for _, name := range ns.ChildNames() {
		c, _ := ns.Child(name)
		fmt.Printf("  %s/ (%d children, %d properties)\n", name, c.NumChildren(), c.NumProperties())
	}
	fmt.Println("}")
}

func runStats(ctx context.Context, dir string) error {
	store, err := openStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("revisions: %d\n", stats.Revisions)
	fmt.Printf("nodes:     %d\n", stats.Nodes)
	fmt.Printf("node data: %s\n", humanize.Bytes(stats.NodeBytes))
	return nil
}
