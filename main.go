package main

import (
	"context"
	"emsp/internal/config"
	"emsp/server"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	conf, err := config.GetConfig(*configPath)
	if err != nil {
		log.Println("configuration load failed", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emsp, err := server.NewEmsp(ctx, conf)
	if err != nil {
		log.Println("emsp initialization failed", err)
		return
	}
	if err = emsp.Start(ctx); err != nil {
		log.Println("emsp stopped with error", err)
	}
}
