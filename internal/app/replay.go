package app

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/imu_fusion/internal/config"
	"github.com/relabs-tech/imu_fusion/internal/orientation"
)

// StateMessage is the kinematic state payload published per replayed sample.
type StateMessage struct {
	T  float64 `json:"t"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	Vx float64 `json:"vx"`
	Vy float64 `json:"vy"`
	Vz float64 `json:"vz"`
}

// RunReplayPublisher fuses the configured recording and replays the result
// over MQTT, one sample per tick, as if a live device were producing it.
func RunReplayPublisher() error {
	log.Println("replay: starting fusion replay publisher")

	cfg := config.Get()

	result, err := Fuse()
	if err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDReplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("replay: MQTT connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Printf("replay: connected to MQTT broker at %s", cfg.MQTTBroker)

	src := orientation.NewHistorySource(result.Workspace.Quat)

	interval := cfg.ReplayInterval
	if interval <= 0 {
		interval = 100
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer ticker.Stop()

	idx := 0
	for range ticker.C {
		pose, err := src.Next()
		if errors.Is(err, io.EOF) {
			log.Printf("replay: history exhausted after %d samples", idx)
			return nil
		}
		if err != nil {
			log.Printf("replay: pose source error: %v", err)
			continue
		}

		if payload, err := json.Marshal(pose); err != nil {
			log.Printf("replay: pose marshal error: %v", err)
		} else if token := client.Publish(cfg.TopicPose, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("replay: MQTT publish error (pose): %v", token.Error())
		}

		if result.Position {
			s := result.Workspace.State[idx]
			msg := StateMessage{
				T: result.TS[idx],
				X: s[0], Y: s[1], Z: s[2],
				Vx: s[3], Vy: s[4], Vz: s[5],
			}
			if payload, err := json.Marshal(msg); err != nil {
				log.Printf("replay: state marshal error: %v", err)
			} else if token := client.Publish(cfg.TopicState, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("replay: MQTT publish error (state): %v", token.Error())
			}
		}
		idx++
	}
	return nil
}
