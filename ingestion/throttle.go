package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TogetherCrew/hivemind-backend/ai"
)

const (
	// minutePause is slightly over one minute so the per-minute window
	// has definitely rolled over before the next request.
	minutePause = 61 * time.Second

	// dayPause is slightly over 24 hours, for the same reason.
	dayPause = 24*time.Hour + time.Second
)

// throttledEmbedder embeds texts one at a time under two independent
// request quotas: requests per minute and requests per day. A zero quota
// disables the corresponding throttle.
//
// Items are processed in index order. After every item whose 1-based
// position is an exact multiple of the per-minute quota, the embedder
// pauses for just over a minute, except at the first and last positions
// where pausing would throttle needlessly. After every position that is
// an exact multiple of the per-day quota it pauses for just over a day.
//
// Any embedding error aborts the batch without partial-success
// bookkeeping: already-delivered vectors have reached the sink, and the
// caller retries the unembedded remainder by re-invoking with the same
// texts.
type throttledEmbedder struct {
	embedder  ai.Embedder
	perMinute int
	perDay    int
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

func newThrottledEmbedder(embedder ai.Embedder, perMinute, perDay int, logger *slog.Logger) *throttledEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &throttledEmbedder{
		embedder:  embedder,
		perMinute: perMinute,
		perDay:    perDay,
		sleep:     sleepContext,
		logger:    logger.With("component", "throttled-embedder"),
	}
}

// embedAll embeds every text in order, delivering each vector to sink as
// soon as it is computed so a later failure loses no finished work.
func (t *throttledEmbedder) embedAll(ctx context.Context, texts []string, sink func(i int, vector []float32) error) error {
	total := len(texts)
	for i, text := range texts {
		position := i + 1
		t.logger.Info("embedding chunk", "position", position, "total", total)

		vector, err := t.embedder.EmbedText(ctx, text)
		if err != nil {
			return fmt.Errorf("embedding item %d/%d: %w", position, total, err)
		}
		if err := sink(i, vector); err != nil {
			return err
		}

		if t.perDay > 0 && position%t.perDay == 0 {
			t.logger.Info("sleeping to stay under the per-day request quota",
				"position", position, "pause", dayPause)
			if err := t.sleep(ctx, dayPause); err != nil {
				return err
			}
		}

		if t.perMinute > 0 && position%t.perMinute == 0 && position != 1 && position != total {
			t.logger.Info("sleeping to stay under the per-minute request quota",
				"position", position, "pause", minutePause)
			if err := t.sleep(ctx, minutePause); err != nil {
				return err
			}
		}
	}
	return nil
}

// sleepContext blocks for d or until the context is cancelled, whichever
// comes first. A cancellable timer rather than time.Sleep, so a
// long-running service can shut down cleanly mid-pause.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
