// Package kafka prepares the broker for the app: readiness probing and creation of the capture
// and operation-summary topics
package kafka

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Topic describes a topic the app needs. Zero Partitions means one partition.
type Topic struct {
	Name       string
	Partitions int
	// Retention of messages; zero keeps the broker default
	Retention time.Duration
}

// InitKafkaTopics - creates topics in kafka, retrying until every topic exists or ctx is done
func InitKafkaTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...Topic) {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}
	req := topicsRequest(topics)

	for {
		resp, err := client.CreateTopics(ctx, req)
		if err != nil {
			log.Printf("Failed to run topics creation request: %v\nWait %v before next try...", err, delay)
			if !sleep(ctx, delay) {
				log.Println("InitKafkaTopics canceled or timed out")
				return
			}
			continue
		}

		if created(resp.Errors) {
			log.Println("All topics are in place!")
			return
		}
		if !sleep(ctx, delay) {
			log.Println("InitKafkaTopics canceled or timed out")
			return
		}
	}
}

func topicsRequest(topics []Topic) *kafkago.CreateTopicsRequest {
	req := &kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}

	for _, t := range topics {
		cfg := kafkago.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     max(t.Partitions, 1),
			ReplicationFactor: 1,
		}
		if t.Retention > 0 {
			cfg.ConfigEntries = append(cfg.ConfigEntries, kafkago.ConfigEntry{
				ConfigName:  "retention.ms",
				ConfigValue: strconv.FormatInt(t.Retention.Milliseconds(), 10),
			})
		}
		req.Topics = append(req.Topics, cfg)
	}
	return req
}

// created reports whether every topic either was created or already existed.
func created(errs map[string]error) bool {
	ok := true
	for topic, err := range errs {
		switch {
		case err == nil, errors.Is(err, kafkago.TopicAlreadyExists):
		default:
			log.Printf("Topic %q creation error: %v", topic, err)
			ok = false
		}
	}
	return ok
}

// WaitKafkaReady - blocks until the broker accepts connections or ctx is done
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) bool {
	for {
		conn, err := kafkago.DialContext(ctx, "tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				log.Println("Failed to close connection after testing Kafka readyness:", errConn)
			}
			log.Println("Kafka is ready!")
			return true
		}
		log.Printf("Kafka not ready, retrying in %v...", delay)
		if !sleep(ctx, delay) {
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
