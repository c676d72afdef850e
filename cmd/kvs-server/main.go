package main

import (
	"flag"
	"log"

	"github.com/anthanhphan/go-kv-store/internal/storage/app"
)

func main() {
	var (
		configPath string
		overrides  app.Overrides
	)
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.StringVar(&overrides.Addr, "addr", "", "Address to listen on (default 127.0.0.1:4000)")
	flag.StringVar(&overrides.Engine, "engine", "", "Storage engine: kvs or leveldb (default: the one the data dir was created with)")
	flag.StringVar(&overrides.DataDir, "dir", "", "Data directory (default current directory)")
	flag.Parse()

	application, err := app.New(configPath, overrides)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
