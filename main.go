package main

import (
	"errors"
	"log"
	"os"

	"github.com/Conceptual-Machines/nearfield-gen/internal/cli"
	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/joho/godotenv"
)

const (
	exitError         = 1
	exitInvalidConfig = 2
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if err := cli.Execute(GetVersion()); err != nil {
		log.Printf("❌ %v", err)
		if errors.Is(err, config.ErrInvalidConfig) {
			os.Exit(exitInvalidConfig)
		}
		os.Exit(exitError)
	}
}
