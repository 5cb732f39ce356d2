package helper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPrettyHandler(t *testing.T) {
	t.Run("Create PrettyHandler with default options", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		assert.NotNil(t, handler, "Expected NewPrettyHandler to return a non-nil handler")
		assert.NotNil(t, handler.Handler, "Expected handler to have a non-nil Handler field")
		assert.NotNil(t, handler.l, "Expected handler to have a non-nil logger field")
	})

	t.Run("Respect the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, slog.LevelWarn)

		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden", "Expected info record to be filtered")
		assert.Contains(t, buf.String(), "shown", "Expected warn record to be written")
	})
}

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	levels := []struct {
		level slog.Level
		label string
	}{
		{slog.LevelDebug, "DEBUG:"},
		{slog.LevelInfo, "INFO:"},
		{slog.LevelWarn, "WARN:"},
		{slog.LevelError, "ERROR:"},
	}
	for _, l := range levels {
		t.Run("Handle "+l.label+" record", func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewPrettyHandler(&buf, PrettyHandlerOptions{SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug}})

			record := slog.NewRecord(time.Now(), l.level, "indexed paper", 0)
			record.AddAttrs(slog.String("paper_id", "pmid-1"), slog.Int("chunks", 5))

			err := handler.Handle(ctx, record)
			assert.NoError(t, err, "Expected Handle to not return an error")

			output := buf.String()
			assert.Contains(t, output, l.label, "Expected output to contain the level")
			assert.Contains(t, output, "indexed paper", "Expected output to contain the message")
			assert.Contains(t, output, `"paper_id":"pmid-1"`, "Expected output to contain the string attribute")
			assert.Contains(t, output, `"chunks":5`, "Expected output to contain the int attribute")
			assert.Regexp(t, `\[\d{2}:\d{2}:\d{2}\.\d{3}\]`, output, "Expected output to contain a formatted timestamp")
		})
	}

	t.Run("Handle record without attributes", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		err := handler.Handle(ctx, slog.NewRecord(time.Now(), slog.LevelInfo, "simple message", 0))
		assert.NoError(t, err, "Expected Handle to not return an error")
		assert.Contains(t, buf.String(), "{}", "Expected empty JSON object for attributes")
	})

	t.Run("Errors are written as their message", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelError, "search branch failed", 0)
		record.AddAttrs(slog.Any("error", errors.New("dense index unreachable")))

		err := handler.Handle(ctx, record)
		assert.NoError(t, err, "Expected Handle to not return an error")
		assert.Contains(t, buf.String(), "dense index unreachable", "Expected the error message in the output")
	})
}

func TestPrettyHandlerWithAttrsAndGroup(t *testing.T) {
	t.Run("WithAttrs adds attributes to every record", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{})).With("component", "retrieval")

		logger.Info("first")
		logger.Info("second")

		assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"component":"retrieval"`)), "Expected attribute on both records")
	})

	t.Run("WithGroup nests record attributes", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{})).WithGroup("search")

		logger.Info("fused", "results", 3)

		assert.Contains(t, buf.String(), `{"search":{"results":3}}`, "Expected grouped attributes")
	})
}
