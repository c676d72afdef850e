// Package cli implements the command grammar shared by kvs-client and kvs.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

const keyNotFound = "Key not found"

// ParseInterleaved parses fs flags wherever they appear in args and returns
// the positional arguments in order, so `get k -addr A` and `-addr A get k`
// are equivalent.
func ParseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// Execute runs one command against store. Results go to stdout, failures to
// stderr; the return value is the process exit code.
func Execute(ctx context.Context, store port.KVService, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "missing command: expected get, set, rm or remove")
		return ExitUsage
	}

	cmd, params := args[0], args[1:]
	switch cmd {
	case "get":
		if len(params) != 1 {
			return usage(stderr, "get <KEY>")
		}
		value, found, err := store.Get(ctx, params[0])
		if err != nil {
			return fail(stderr, err)
		}
		if !found {
			_, _ = fmt.Fprintln(stderr, keyNotFound)
			return ExitError
		}
		_, _ = fmt.Fprintln(stdout, value)
		return ExitOK

	case "set":
		if len(params) != 2 {
			return usage(stderr, "set <KEY> <VALUE>")
		}
		if err := store.Set(ctx, params[0], params[1]); err != nil {
			return fail(stderr, err)
		}
		return ExitOK

	case "rm", "remove":
		if len(params) != 1 {
			return usage(stderr, cmd+" <KEY>")
		}
		if err := store.Remove(ctx, params[0]); err != nil {
			return fail(stderr, err)
		}
		return ExitOK

	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q: expected get, set, rm or remove\n", cmd)
		return ExitUsage
	}
}

func usage(stderr io.Writer, form string) int {
	_, _ = fmt.Fprintf(stderr, "usage: %s\n", form)
	return ExitUsage
}

func fail(stderr io.Writer, err error) int {
	if errors.Is(err, port.ErrKeyNotFound) {
		_, _ = fmt.Fprintln(stderr, keyNotFound)
	} else {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return ExitError
}
