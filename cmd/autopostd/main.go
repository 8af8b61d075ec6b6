// Command autopostd runs the autopost daemon in the foreground, for service
// managers that supervise the process themselves.
package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"autopost/internal/config"
	"autopost/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	err = daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:   *logLevel,
		Foreground: true,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("autopostd: %v", err)
	}
}
