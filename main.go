package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/km-arc/go-swift/app"
	"github.com/km-arc/go-swift/framework/config"
	"github.com/km-arc/go-swift/framework/foundation"
)

const usage = `usage: swift <command> [flags]

commands:
  serve                     boot the container and serve HTTP
  cache:clear               remove the compiled container
  debug:container [--tag]   list compiled services
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	application, err := initializeApplication(cfg, foundation.AppProviders{&app.AppServiceProvider{}})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = application.Logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd := args[0]; cmd {
	case "serve":
		err = application.Run(ctx)
	case "cache:clear":
		if err = application.ClearCache(); err == nil {
			fmt.Fprintf(stdout, "Compiled container cleared from %s\n", application.Store.Dir())
		}
	case "debug:container":
		err = debugContainer(ctx, application, args[1:], stdout)
	default:
		err = fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// debugContainer prints the compiled services, like
// `php bin/console debug:container`.
func debugContainer(ctx context.Context, application *foundation.Application, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("debug:container", flag.ContinueOnError)
	fs.SetOutput(out)
	tag := fs.String("tag", "", "only list services carrying this tag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	defer application.Close()
	if err := application.Boot(ctx); err != nil {
		return err
	}
	c := application.Container()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLASS\tSHARED\tTAGS")
	for _, def := range c.Definitions() {
		if *tag != "" && !def.HasTag(*tag) {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", def.ID, def.Class, def.Shared, strings.Join(def.Tags, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if *tag == "" {
		aliases := c.Graph().Aliases()
		for _, alias := range slices.Sorted(maps.Keys(aliases)) {
			fmt.Fprintf(out, "alias %s -> %s\n", alias, aliases[alias])
		}
	}
	return nil
}
