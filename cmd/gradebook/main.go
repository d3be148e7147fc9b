// Package main is the gradebook operator CLI.
//
// Each subcommand connects to PostgreSQL (and Redis when enabled), runs one
// application operation and prints its result as JSON:
//
//	gradebook migrate [-status | -rollback]
//	gradebook period-average -student S -class C -assignment A -period P
//	gradebook class-period-averages -class C -assignment A -period P
//	gradebook completeness -class C -assignment A -period P
//	gradebook bulk-close -class C -assignment A [-actor U]
//	gradebook final-results -class C -year Y [-student S] [-actor U]
//	gradebook report-card -student S -class C
//	gradebook health
//
// Exit status is 2 for usage errors, 75 for failures worth retrying (timeouts,
// unavailable dependencies, concurrent modification) and 1 otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/school-hub/gradebook/internal/domain/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		code := exitCode(err)
		switch code {
		case exitUsage:
			fmt.Fprintln(os.Stderr, err.Error())
		case exitTempFail:
			fmt.Fprintf(os.Stderr, "transient failure, retry later: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		}
		os.Exit(code)
	}
}

const (
	exitFailure  = 1
	exitUsage    = 2
	exitTempFail = 75 // EX_TEMPFAIL
)

func exitCode(err error) int {
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		return exitUsage
	case shared.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		return exitTempFail
	default:
		return exitFailure
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return &usageError{msg: usageText}
	}
	cmd, ok := subcommands[args[0]]
	if !ok {
		return &usageError{msg: fmt.Sprintf("unknown command %q\n\n%s", args[0], usageText)}
	}
	opts, err := cmd.parse(args[1:])
	if err != nil {
		return &usageError{msg: err.Error()}
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, a, opts)
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

const usageText = `usage: gradebook <command> [flags]

commands:
  migrate                apply pending schema migrations
  period-average         recompute one student's period average
  class-period-averages  recompute the period averages of a class
  completeness           open a period closing and refresh its checklist
  bulk-close             teacher direct-close every pending period
  final-results          decide the year's final results
  report-card            print a student's report card
  health                 check the database and Redis, list feature flags`
