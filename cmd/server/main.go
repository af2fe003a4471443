package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"richmenu-editor/internal/bootstrap"
)

func main() {
	app, err := bootstrap.NewApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	app.Start()
	app.Log.Info("Rich menu editor server is running. Press Ctrl+C to exit.")

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Log.Info("Shutdown signal received...")
	app.Shutdown()
}
