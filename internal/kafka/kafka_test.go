package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestBrokersPrefersConfigured(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "env:9092")
	got := Brokers("a:9092", " b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}

func TestBrokersFallsBack(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "env1:9092,,env2:9092")
	if got := Brokers(); len(got) != 2 || got[1] != "env2:9092" {
		t.Fatalf("unexpected env brokers %v", got)
	}
	t.Setenv("KAFKA_BROKERS", "")
	if got := Brokers(); len(got) != 1 || got[0] != DefaultBroker {
		t.Fatalf("expected default broker, got %v", got)
	}
}

func TestWaitForBrokerRequiresBrokers(t *testing.T) {
	if err := WaitForBroker(t.Context(), nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewWriterKeysByHash(t *testing.T) {
	w := NewWriter([]string{"a:9092"}, DefaultOpportunityTopic)
	defer w.Close()
	if w.Topic != DefaultOpportunityTopic {
		t.Fatalf("unexpected topic %s", w.Topic)
	}
	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("expected hash balancer, got %T", w.Balancer)
	}
}
