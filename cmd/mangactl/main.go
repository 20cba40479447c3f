// Command mangactl manages the manga reader's database: schema migrations,
// content seeding, chapter statistics and learner progress exports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCmd(postgresBackend).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
