package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/imu_fusion/internal/app"
	"github.com/relabs-tech/imu_fusion/internal/config"
)

func main() {
	configPath := flag.String("config", "./fusion_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting imu-fusion replay publisher (recording → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunReplayPublisher(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
