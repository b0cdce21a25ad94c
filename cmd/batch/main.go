// Package main is a one-shot batch runner: derive every image in a directory and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"

	appcfg "github.com/imagemill/imagemill/internal/config"
	"github.com/imagemill/imagemill/internal/model"
	"github.com/imagemill/imagemill/internal/publisher"
	"github.com/imagemill/imagemill/internal/service"
)

func main() {
	srcDir := flag.String("dir", "", "directory with source images (required)")
	sweep := flag.Bool("sweep", false, "run a retention sweep after the batch")
	flag.Parse()

	if *srcDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Printf("No .env file loaded: %s", err)
	}

	zlog.InitConsole()
	if err := zlog.SetLevel("warn"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	cfg := appcfg.Load(appConfig)

	pub, err := publisher.New(cfg.CDN)
	if err != nil {
		log.Fatalf("Failed to set up CDN publisher: %v", err)
	}

	svc, err := service.New(cfg, pub, nil)
	if err != nil {
		log.Fatalf("Failed to set up image service: %v", err)
	}

	items, err := collectSources(*srcDir)
	if err != nil {
		log.Fatalf("Failed to scan %q: %v", *srcDir, err)
	}
	if len(items) == 0 {
		fmt.Printf("No images found in %s\n", *srcDir)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := svc.ProcessBatch(ctx, items)

	failed := 0
	for i, item := range results {
		switch {
		case item.Err != nil:
			failed++
			fmt.Printf("FAIL  %s: step %s: %v\n", items[i].OriginalFilename, item.Err.Step, item.Err.Err)
		default:
			fmt.Printf("OK    %s: %d artifacts, saved %s\n",
				items[i].OriginalFilename, len(item.Result.Artifacts), item.Result.Stats.SavingsPercent)
		}
	}
	fmt.Printf("Done: %d processed, %d failed\n", len(results)-failed, failed)

	if *sweep {
		fmt.Printf("Sweep removed %d expired artifacts\n", svc.Sweep())
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// collectSources lists the directory non-recursively and keeps only files
// with a known image extension.
func collectSources(dir string) ([]model.SourceImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var items []model.SourceImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := model.GetCType[ext]; !ok {
			continue
		}
		items = append(items, model.SourceImage{
			LocalPath:        filepath.Join(dir, e.Name()),
			OriginalFilename: e.Name(),
		})
	}
	return items, nil
}
