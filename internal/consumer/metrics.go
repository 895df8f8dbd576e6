package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskfit",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of Kafka messages successfully processed and committed.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskfit",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of Kafka messages that failed framing or header decoding.",
	}, []string{"topic"})

	handlerErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskfit",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Number of messages whose handler returned an error.",
	}, []string{"topic", "event_type"})
)

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}
