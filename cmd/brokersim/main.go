package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"brokergate/brokersim"
	"brokergate/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running simulator: %s\n", err)
	}
	log.Printf("Simulator stopped\n")
}

func run() error {
	displayAppname("Broker Sim")

	sim, err := brokersim.New(brokersim.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("brokersim.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:    config.GetEnv("SIM_ADDRESS", ":9090"),
		Handler: sim,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Simulator listening on %s\n", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("server.ListenAndServe %w", err)
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
