package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_sensors/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
