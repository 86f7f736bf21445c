package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fulldump/goconfig"

	"github.com/coldbase/coldbase/bootstrap"
	"github.com/coldbase/coldbase/collection"
	"github.com/coldbase/coldbase/configuration"
)

// runMaintenance implements the standalone "coldbase compact|vacuum <name>"
// subcommand from SPEC_FULL §3.5: it forces one maintenance pass on a
// single collection outside the probabilistic per-write trigger, prints
// the result and exits, for operators who don't want to wait on writes.
func runMaintenance(op string, args []string) {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	fs.Parse(args)

	name := fs.Arg(0)
	if name == "" {
		fmt.Fprintf(os.Stderr, "usage: coldbase %s <collection>\n", op)
		os.Exit(1)
	}

	c := configuration.Default()
	goconfig.Read(&c)

	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, &c)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}

	col, err := collection.New(store, name, c.CollectionOptions())
	if err != nil {
		fmt.Fprintln(os.Stderr, "open collection:", err)
		os.Exit(1)
	}

	var result any
	switch op {
	case "compact":
		result, err = col.Compact(ctx)
	case "vacuum":
		result, err = col.Vacuum(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", op, name, err)
		os.Exit(1)
	}

	e := json.NewEncoder(os.Stdout)
	e.SetIndent("", "    ")
	e.Encode(result)
}
