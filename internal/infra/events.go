package infra

import (
	"bufio"
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

// eventChanDepth bounds how far the consumer may fall behind. Window
// events describe "now"; once the buffer is full, dropping the newest is
// fine because another event follows immediately on any real transition.
const eventChanDepth = 16

// EventStream adapts the streaming `uiautomator events` output to
// domain.UiEvent. One stream per daemon; restart is the caller's job
// when the channel closes early.
type EventStream struct {
	adb    *Adb
	logger *zap.Logger
}

var _ domain.UiEventSource = (*EventStream)(nil)

// NewEventStream returns a source using the given runner.
func NewEventStream(adb *Adb, logger *zap.Logger) *EventStream {
	return &EventStream{
		adb:    adb,
		logger: logger.With(zap.String("component", "events")),
	}
}

// Events starts the device event stream. The channel closes when ctx is
// done or the adb process exits.
func (s *EventStream) Events(ctx context.Context) (<-chan domain.UiEvent, error) {
	out, cmd, err := s.adb.Stream(ctx, "shell", "uiautomator", "events")
	if err != nil {
		return nil, err
	}

	ch := make(chan domain.UiEvent, eventChanDepth)
	go func() {
		defer close(ch)
		defer func() {
			out.Close()
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				s.logger.Warn("event stream ended", zap.Error(err))
			}
		}()

		var dropped int64
		scanner := bufio.NewScanner(out)
		// Text: [...] payloads on list screens run long.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			ev, ok := parseEventLine(scanner.Text(), time.Now())
			if !ok {
				continue
			}
			select {
			case ch <- ev:
			default:
				// ctx cancellation kills the child process, which ends
				// this loop; no Done case needed here.
				dropped++
				if dropped%100 == 1 {
					s.logger.Debug("dropping window events, consumer behind",
						zap.Int64("dropped", dropped))
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			s.logger.Warn("event stream read error", zap.Error(err))
		}
	}()
	return ch, nil
}

// parseEventLine extracts a window event from one line of uiautomator
// events output. Lines look like:
//
//	EventType: TYPE_WINDOW_STATE_CHANGED; EventTime: 151590; PackageName: com.android.settings; ... [ ClassName: android.app.AlertDialog; ... ]
//
// Non-window event types are skipped.
func parseEventLine(line string, at time.Time) (domain.UiEvent, bool) {
	var typ domain.EventType
	switch {
	case strings.Contains(line, "TYPE_WINDOW_STATE_CHANGED"):
		typ = domain.EventWindowStateChanged
	case strings.Contains(line, "TYPE_WINDOW_CONTENT_CHANGED"):
		typ = domain.EventWindowContentChanged
	default:
		return domain.UiEvent{}, false
	}
	return domain.UiEvent{
		Type:        typ,
		PackageName: eventField(line, "PackageName"),
		ClassName:   eventField(line, "ClassName"),
		At:          at,
	}, true
}

// eventField pulls "Key: value" out of the semicolon-separated record.
// Missing keys and the literal null both come back empty.
func eventField(line, key string) string {
	idx := strings.Index(line, key+": ")
	if idx < 0 {
		return ""
	}
	rest := line[idx+len(key)+2:]
	if end := strings.IndexAny(rest, ";]"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	if rest == "null" {
		return ""
	}
	return rest
}
