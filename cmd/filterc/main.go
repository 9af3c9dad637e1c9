// Command filterc compiles portable filter expressions to SQL and runs them
// against records in memory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Stamhoofd/Stamhoofd-sub000/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "filterc:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
