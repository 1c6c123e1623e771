package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/coastal-erosion-etl/internal/config"
	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// Writer publishes site risk reports to a Kafka topic, one message per site
// keyed by site name. It implements pipeline.ReportLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewWriter creates a Kafka producer for the configured risk topic. A nil
// clock uses the real clock.
func NewWriter(cfg *config.Config, logger *slog.Logger, clock clockwork.Clock) *Writer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaRiskTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, clock: clock}
}

// riskMessage is the published payload.
type riskMessage struct {
	RunID             string            `json:"run_id"`
	Site              string            `json:"site"`
	Index             string            `json:"index"`
	DateRange         domain.DateRange  `json:"date_range"`
	Tier              domain.RiskTier   `json:"tier"`
	Delta             *float64          `json:"delta,omitempty"`
	Samples           int               `json:"samples"`
	First             *domain.Sample    `json:"first,omitempty"`
	Last              *domain.Sample    `json:"last,omitempty"`
	CoastlineSegments int               `json:"coastline_segments"`
	Stages            map[string]string `json:"stages"`
	SourceUnavailable bool              `json:"source_unavailable,omitempty"`
	FinishedAt        time.Time         `json:"finished_at"`
}

// LoadBatch publishes every attempted report in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, reports []domain.SiteReport) error {
	msgs, err := w.messages(reports)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish risk reports: %w", err)
	}
	w.logger.Debug("risk reports published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

// messages serializes the attempted reports, all stamped with one generation time.
func (w *Writer) messages(reports []domain.SiteReport) ([]kafkago.Message, error) {
	generated := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, 0, len(reports))
	for _, r := range reports {
		if !r.Attempted() {
			continue
		}
		msg, err := serializeToMessage(r, generated)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a SiteReport into a Kafka message.
func serializeToMessage(r domain.SiteReport, generated time.Time) (kafkago.Message, error) {
	payload := riskMessage{
		RunID:             r.RunID,
		Site:              r.Site,
		Index:             r.Index,
		DateRange:         r.DateRange,
		Tier:              r.Assessment.Tier,
		Delta:             r.Assessment.Delta,
		Samples:           r.Assessment.Samples,
		CoastlineSegments: r.CoastlineSegments,
		Stages: map[string]string{
			"fetch":     string(r.Fetch.Status),
			"series":    string(r.Series.Status),
			"coastline": string(r.Coastline.Status),
			"risk":      string(r.Risk.Status),
		},
		SourceUnavailable: r.SourceUnavailable,
		FinishedAt:        r.FinishedAt,
	}
	if s, ok := r.TimeSeries.First(); ok {
		payload.First = &s
	}
	if s, ok := r.TimeSeries.Last(); ok {
		payload.Last = &s
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize risk report %s: %w", r.Site, err)
	}
	return kafkago.Message{
		Key:   []byte(r.Site),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_tier", Value: []byte(r.Assessment.Tier.String())},
			{Key: "generated_at", Value: []byte(generated.Format(time.RFC3339))},
		},
	}, nil
}
