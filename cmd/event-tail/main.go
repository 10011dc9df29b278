// event-tail is a debugging CLI that tails the pipeline topics and
// prints each message with its partition and offset.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/spf13/cobra"

	"github.com/Err-Tools/error-remediation-pipeline/internal/events"
)

var (
	brokers       string
	topics        []string
	consumerGroup string
	outputFormat  string
	fromBeginning bool
)

var rootCmd = &cobra.Command{
	Use:   "event-tail",
	Short: "Tail error events and remediation results from Kafka",
	Long: `Tail the pipeline's Kafka topics for debugging.

Examples:
  # Tail both pipeline topics from the latest offset
  event-tail

  # Tail only remediation results
  event-tail --topics orchestrator_results

  # Replay a topic from the beginning as JSON lines
  event-tail --topics error_events --from-beginning --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTail()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&brokers, "brokers", "localhost:9092", "Kafka bootstrap brokers")
	rootCmd.PersistentFlags().StringSliceVarP(&topics, "topics", "t", []string{events.TopicErrorEvents, events.TopicResults}, "topics to consume from")
	rootCmd.PersistentFlags().StringVarP(&consumerGroup, "consumer-group", "g", "event-tail-cli", "Kafka consumer group id")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, json")
	rootCmd.PersistentFlags().BoolVar(&fromBeginning, "from-beginning", false, "consume from the earliest offset")
}

type tailLine struct {
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       string    `json:"key,omitempty"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

func runTail() error {
	if outputFormat != "text" && outputFormat != "json" {
		return fmt.Errorf("invalid output format: %s (must be 'text' or 'json')", outputFormat)
	}

	offsetReset := "latest"
	if fromBeginning {
		offsetReset = "earliest"
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           consumerGroup,
		"auto.offset.reset":  offsetReset,
		"enable.auto.commit": true,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	defer consumer.Close()

	if err := consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "tailing %v (group %s)\n", topics, consumerGroup)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			msg, err := consumer.ReadMessage(time.Second)
			if err != nil {
				if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				fmt.Fprintf(os.Stderr, "consumer error: %v\n", err)
				continue
			}
			printMessage(msg)
		}
	}
}

func printMessage(msg *kafka.Message) {
	line := tailLine{
		Topic:     *msg.TopicPartition.Topic,
		Partition: msg.TopicPartition.Partition,
		Offset:    int64(msg.TopicPartition.Offset),
		Key:       string(msg.Key),
		Value:     string(msg.Value),
		Timestamp: msg.Timestamp,
	}

	if outputFormat == "json" {
		data, err := json.Marshal(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal message: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("[%s/%d@%d] key=%s %s\n", line.Topic, line.Partition, line.Offset, line.Key, line.Value)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
