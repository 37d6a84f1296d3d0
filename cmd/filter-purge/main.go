// Command filter-purge publishes a purge event for cached filter encodings.
// Keys come from the arguments or, with "-", one per line on stdin.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/config"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/invalidation"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	cfg := config.FromEnv()

	fs := flag.NewFlagSet("filter-purge", flag.ContinueOnError)
	brokers := fs.String("brokers", cfg.Events.Brokers, "Kafka brokers, comma separated")
	topic := fs.String("topic", cfg.Purge.Topic, "Purge topic")
	reason := fs.String("reason", "", "Free-text reason carried on the event")
	dry := fs.Bool("dry-run", false, "Print the event instead of sending it")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	keys, err := collectKeys(fs.Args(), stdin)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "read keys:", err)
		return 1
	}
	ev := invalidation.Event{
		Version: 1,
		Op:      "purge",
		Keys:    keys,
		TS:      time.Now().UTC(),
		Source:  "filter-purge",
		Reason:  *reason,
	}
	if err := ev.Validate(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "invalid purge event:", err)
		return 2
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "marshal:", err)
		return 1
	}
	if *dry {
		_, _ = fmt.Fprintln(stdout, string(payload))
		return 0
	}

	part, off, err := send(config.EventsCfg{Brokers: *brokers}.BrokerList(), *topic, payload)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "kafka:", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "purged %d keys via %s (partition %d, offset %d)\n", len(keys), *topic, part, off)
	return 0
}

func collectKeys(args []string, stdin io.Reader) ([]string, error) {
	var keys []string
	for _, a := range args {
		if a != "-" {
			if a = strings.TrimSpace(a); a != "" {
				keys = append(keys, a)
			}
			continue
		}
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
				keys = append(keys, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scan stdin: %w", err)
		}
	}
	return keys, nil
}

func send(brokers []string, topic string, payload []byte) (int32, int64, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Version = sarama.V2_5_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return 0, 0, fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	part, off, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("send message: %w", err)
	}
	return part, off, nil
}
