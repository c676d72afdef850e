package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/anthanhphan/go-kv-store/internal/cli"
	grpcHandler "github.com/anthanhphan/go-kv-store/internal/storage/adapter/inbound/grpc"
	"github.com/anthanhphan/go-kv-store/internal/storage/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("kvs-client", flag.ContinueOnError)
	addr := fs.String("addr", config.DefaultAddr, "Server address")
	timeout := fs.Duration("timeout", grpcHandler.DefaultCallTimeout, "Per-request timeout")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(fs.Output(), "usage: kvs-client <get KEY | set KEY VALUE | rm KEY> [-addr ADDR]")
		fs.PrintDefaults()
	}

	positional, err := cli.ParseInterleaved(fs, args)
	if err != nil {
		return cli.ExitUsage
	}

	client := grpcHandler.NewClient(*addr, grpcHandler.WithCallTimeout(*timeout))
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()
	return cli.Execute(ctx, client, positional, os.Stdout, os.Stderr)
}
