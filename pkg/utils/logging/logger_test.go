package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/elelem/visibility/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestNewLevels(t *testing.T) {
	testCases := []struct {
		level       string
		expectDebug bool
		expectWarn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warning", false, true},
		{"error", false, false},
		{"DEBUG", true, true},
		{"invalid", false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Debug("debug message")
			logger.Warn("warn message")
			logger.Error("error message")

			output := buf.String()
			if tc.expectDebug {
				gt.S(t, output).Contains("debug message")
			} else {
				gt.S(t, output).NotContains("debug message")
			}
			if tc.expectWarn {
				gt.S(t, output).Contains("warn message")
			} else {
				gt.S(t, output).NotContains("warn message")
			}
			gt.S(t, output).Contains("error message")
		})
	}
}

func TestNewJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf, logging.WithFormat(logging.FormatJSON))

	logger.Info("analysis done", "response_id", "resp-1", "score", 72.5)

	var entry map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	gt.Equal(t, entry["msg"], any("analysis done"))
	gt.Equal(t, entry["response_id"], any("resp-1"))
	gt.Equal(t, entry["score"], any(72.5))
}

func TestConsoleRendersGoerrValues(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf)

	err := goerr.New("insert failed", goerr.V("table", "brand_performance"))
	logger.Warn("persistence step failed", "error", err)

	gt.S(t, buf.String()).Contains("insert failed")
}

func TestParseFormat(t *testing.T) {
	gt.Equal(t, logging.ParseFormat("json"), logging.FormatJSON)
	gt.Equal(t, logging.ParseFormat(" JSON "), logging.FormatJSON)
	gt.Equal(t, logging.ParseFormat("console"), logging.FormatConsole)
	gt.Equal(t, logging.ParseFormat("xml"), logging.FormatConsole)
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf).With("component", "test")

	ctx := logging.With(context.Background(), logger)
	retrieved := logging.From(ctx)
	gt.Equal(t, retrieved, logger)

	retrieved.Info("context message")
	gt.S(t, buf.String()).Contains("context message")
	gt.S(t, buf.String()).Contains("component")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	customDefault := logging.New("warn", buf)
	logging.SetDefault(customDefault)

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, customDefault)

	retrieved.Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}
