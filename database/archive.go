package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/handlers"
	"options-flow-tracker/models"
)

// FlowWriter persists batches of flow records
type FlowWriter interface {
	WriteFlows(ctx context.Context, records []FlowEventRecord) error
}

// ArchiveConfig controls batching for the flow archive
type ArchiveConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
}

// FlowArchive appends every flow event it receives to the archive asynchronously.
// Write failures are logged and the batch is dropped; the live feed never waits on it.
type FlowArchive struct {
	writer  FlowWriter
	cfg     ArchiveConfig
	records chan FlowEventRecord
	log     *logrus.Entry
}

// NewFlowArchive creates a FlowArchive
func NewFlowArchive(writer FlowWriter, cfg ArchiveConfig, logger *logrus.Logger) *FlowArchive {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	return &FlowArchive{
		writer:  writer,
		cfg:     cfg,
		records: make(chan FlowEventRecord, cfg.QueueSize),
		log:     logger.WithField("component", "archive"),
	}
}

// Handle implements handlers.MessageHandler
func (a *FlowArchive) Handle(msg handlers.Message) error {
	m, ok := msg.(*handlers.FlowMessage)
	if !ok {
		return fmt.Errorf("archive: unexpected message %T", msg)
	}

	select {
	case a.records <- NewFlowEventRecord(m.Event):
		return nil
	default:
		return fmt.Errorf("archive: queue full, dropping flow #%d", m.Event.Seq)
	}
}

// Kinds implements handlers.MessageHandler
func (a *FlowArchive) Kinds() []models.EventKind {
	return models.FlowKinds
}

// Run batches queued records until ctx is done, then flushes what is left
func (a *FlowArchive) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]FlowEventRecord, 0, a.cfg.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := a.writer.WriteFlows(ctx, batch); err != nil {
			a.log.WithError(err).Errorf("Failed to archive %d flow events", len(batch))
		} else {
			a.log.Debugf("Archived %d flow events", len(batch))
		}
		batch = make([]FlowEventRecord, 0, a.cfg.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case rec := <-a.records:
					batch = append(batch, rec)
				default:
					break drain
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return

		case rec := <-a.records:
			batch = append(batch, rec)
			if len(batch) >= a.cfg.BatchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}
