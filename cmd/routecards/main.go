// Command routecards issues numbered route cards from a presentation template and keeps
// the ledger of issued numbers.
//
//	routecards issue --number 41 [--count 5]
//	routecards export --out ledger.xlsx [--from 2026-10-01] [--to 2026-10-31]
//	routecards migrate
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
