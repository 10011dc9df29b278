// kafka-init provisions the pipeline topics. Topic specs come from a
// YAML file when given, otherwise the built-in defaults for the
// inbound and results topics are used.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/Err-Tools/error-remediation-pipeline/internal/events"
)

// TopicSpec is the per-topic configuration read from YAML.
type TopicSpec struct {
	Partitions        int            `yaml:"partitions"`
	ReplicationFactor int            `yaml:"replication_factor"`
	Config            map[string]any `yaml:",inline"`
}

type TopicFile struct {
	Topics map[string]TopicSpec `yaml:"topics"`
}

func main() {
	var (
		brokerList = flag.String("brokers", "localhost:9092", "Comma-separated list of bootstrap brokers")
		configPath = flag.String("config", "", "Optional path to a topics YAML file")
		partitions = flag.Int("partitions", 3, "Default partition count when no config file is given")
		dryRun     = flag.Bool("dry-run", false, "Show what would be created without creating topics")
	)
	flag.Parse()

	topics, err := loadTopics(*configPath, *partitions)
	if err != nil {
		log.Fatalf("failed to load topic specs: %v", err)
	}

	var names []string
	for name := range topics {
		names = append(names, name)
	}
	sort.Strings(names)

	if *dryRun {
		fmt.Printf("dry run - would create/verify %d topic(s):\n", len(topics))
		for _, name := range names {
			spec := topics[name]
			fmt.Printf("  %s (partitions: %d, replication: %d)\n", name, spec.Partitions, spec.ReplicationFactor)
		}
		return
	}

	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": *brokerList})
	if err != nil {
		log.Fatalf("failed to create admin client: %v", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var specs []kafka.TopicSpecification
	for _, name := range names {
		t := topics[name]
		cfg := make(map[string]string, len(t.Config))
		for k, v := range t.Config {
			if k == "partitions" || k == "replication_factor" {
				continue
			}
			cfg[k] = fmt.Sprint(v)
		}
		specs = append(specs, kafka.TopicSpecification{
			Topic:             name,
			NumPartitions:     t.Partitions,
			ReplicationFactor: t.ReplicationFactor,
			Config:            cfg,
		})
	}

	results, err := admin.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		log.Fatalf("CreateTopics request failed: %v", err)
	}

	var created, existing, failed int
	for _, res := range results {
		switch res.Error.Code() {
		case kafka.ErrTopicAlreadyExists:
			log.Printf("✓ %s already exists", res.Topic)
			existing++
		case kafka.ErrNoError:
			log.Printf("✓ created %s", res.Topic)
			created++
		default:
			log.Printf("✗ %s: %v", res.Topic, res.Error)
			failed++
		}
	}

	fmt.Printf("summary: %d created, %d existing, %d failed\n", created, existing, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func loadTopics(path string, defaultPartitions int) (map[string]TopicSpec, error) {
	if path == "" {
		return map[string]TopicSpec{
			events.TopicErrorEvents: {Partitions: defaultPartitions, ReplicationFactor: 1},
			events.TopicResults:     {Partitions: defaultPartitions, ReplicationFactor: 1},
		}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	var tf TopicFile
	if err := yaml.Unmarshal(content, &tf); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if len(tf.Topics) == 0 {
		return nil, fmt.Errorf("no topics defined in %s", path)
	}

	for name, spec := range tf.Topics {
		if spec.Partitions <= 0 {
			spec.Partitions = defaultPartitions
		}
		if spec.ReplicationFactor <= 0 {
			spec.ReplicationFactor = 1
		}
		tf.Topics[name] = spec
	}
	return tf.Topics, nil
}
