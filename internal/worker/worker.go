// Package worker consumes captured pages from the queue and hands them to per-session receivers
package worker

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/UnendingLoop/ScanDesk/internal/collection"
	"github.com/UnendingLoop/ScanDesk/internal/imageproc"
	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/receiver"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// SessionEndHeader marks the last message of a capture session; its value is ignored.
const SessionEndHeader = "session-end"

type PageStorage interface {
	PutContent(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
}

type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	storage   PageStorage
	receivers *receiver.Factory
	queue     <-chan kafkago.Message
	consumer  Committer
	prefix    string
	strategy  retry.Strategy

	// owned by the StartWorker goroutine
	sessions map[string]receiver.Func
}

func NewWorkerInstance(strg PageStorage, recv *receiver.Factory, q <-chan kafkago.Message, cons Committer, prefix string) *Worker {
	return &Worker{
		storage:   strg,
		receivers: recv,
		queue:     q,
		consumer:  cons,
		prefix:    prefix,
		strategy: retry.Strategy{
			Attempts: 5,
			Delay:    2 * time.Second,
			Backoff:  2,
		},
		sessions: make(map[string]receiver.Func),
	}
}

// StartWorker consumes until ctx is done or the queue is closed. It returns an error when a page
// could not be stored: committing any later offset would skip that page for good, so consumption
// stops and the page is redelivered after restart.
func (w *Worker) StartWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return nil
			}
			if err := w.handle(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Str("session", string(msg.Key)).Int64("offset", msg.Offset).
					Msg("failed to ingest captured page, consumption stopped")
				return err
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}

// handle returns an error only for failures worth a redelivery. Pages that can never be ingested
// are logged and dropped.
func (w *Worker) handle(ctx context.Context, msg kafkago.Message) error {
	session := string(msg.Key)
	logger := zlog.Logger.With().Str("session", session).Logger()

	if session == "" {
		logger.Warn().Msg("captured page without session key dropped")
		return nil
	}

	if isSessionEnd(msg) {
		delete(w.sessions, session)
		logger.Info().Msg("capture session finished")
		return nil
	}

	img, format, err := imageproc.Decode(bytes.NewReader(msg.Value))
	if err != nil {
		logger.Warn().Err(err).Msg("captured page is not a supported image, dropped")
		return nil
	}

	var key string
	err = retry.DoContext(ctx, w.strategy, func() error {
		var errPut error
		key, errPut = w.storage.PutContent(ctx, w.prefix, msg.Value, model.GetCType[format])
		return errPut
	})
	if err != nil {
		return fmt.Errorf("failed to store captured page: %w", err)
	}

	insert, ok := w.sessions[session]
	if !ok {
		insert = w.receivers.Session(session)
		w.sessions[session] = insert
		logger.Info().Msg("capture session started")
	}

	index, err := insert(collection.NewRecord(img, key))
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("failed to insert captured page")
		return nil
	}

	logger.Debug().Int("index", index).Str("key", key).Msg("captured page received")
	return nil
}

func isSessionEnd(msg kafkago.Message) bool {
	for _, h := range msg.Headers {
		if h.Key == SessionEndHeader {
			return true
		}
	}
	return false
}
