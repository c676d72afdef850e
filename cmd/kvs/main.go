package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/anthanhphan/go-kv-store/internal/cli"
	"github.com/anthanhphan/go-kv-store/internal/storage/adapter/outbound/engine"
	"github.com/anthanhphan/go-kv-store/internal/storage/config"
	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/go-kv-store/internal/storage/service"
	"github.com/anthanhphan/go-kv-store/pkg/resilience"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run operates on the data directory directly, without a server.
func run(args []string) int {
	fs := flag.NewFlagSet("kvs", flag.ContinueOnError)
	dir := fs.String("dir", ".", "Data directory")
	kindFlag := fs.String("engine", "", "Storage engine: kvs or leveldb")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(fs.Output(), "usage: kvs <get KEY | set KEY VALUE | rm KEY> [-dir DIR] [-engine ENGINE]")
		fs.PrintDefaults()
	}

	positional, err := cli.ParseInterleaved(fs, args)
	if err != nil {
		return cli.ExitUsage
	}

	kind, err := domain.ParseEngineKind(*kindFlag)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cli.ExitUsage
	}

	cfg := config.DefaultEngineConfig(*dir)
	cfg.Kind = kind
	eng, err := engine.Open(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cli.ExitError
	}

	pool := resilience.NewWorkerPool(1, 1)
	code := cli.Execute(context.Background(), service.NewKVService(eng, pool), positional, os.Stdout, os.Stderr)

	pool.Close()
	pool.Wait()
	if err := eng.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if code == cli.ExitOK {
			code = cli.ExitError
		}
	}
	return code
}
