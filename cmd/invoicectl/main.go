package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jhoicas/invoicing-core/internal/cli"
)

func main() {
	// .env opcional; las variables ya exportadas tienen prioridad.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "invoicectl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
