package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scierrors "github.com/YuminosukeSato/scitune/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("boom"), FamilyKey, "lasso")

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), msg)
	}
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrorKey, "boom"))
	assert.True(t, testLogger.ContainsField(FamilyKey, "lasso"))
}

func TestTestLoggerLevelFilter(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)
	testLogger.Debug("hidden")
	testLogger.Info("hidden too")
	testLogger.Warn("shown")

	assert.False(t, testLogger.ContainsMessage("hidden"))
	assert.True(t, testLogger.ContainsMessage("shown"))
	assert.False(t, testLogger.Enabled(context.Background(), LevelInfo))
	assert.True(t, testLogger.Enabled(context.Background(), LevelError))
}

func TestTestLoggerWithIsConcurrencySafe(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	run := testLogger.With(RunIDKey, "run-1")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run.Info("task done", CandidateKey, i)
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 16)
	assert.Equal(t, 16, testLogger.CountMessages("task done"))
	assert.True(t, testLogger.ContainsField(RunIDKey, "run-1"))
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo, FormatJSON)

	logger := p.GetLoggerWithName("model_selection").With(RunIDKey, "abc")
	logger.Debug("dropped")
	logger.Info("search started", CandidatesKey, 3)
	logger.Error("refit failed", scierrors.NewValueError("Fit", "bad input"), FamilyKey, "lasso")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)

	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "search started", entries[0]["message"])
	assert.Equal(t, "model_selection", entries[0][ComponentKey])
	assert.Equal(t, "abc", entries[0][RunIDKey])
	assert.Equal(t, 3.0, entries[0][CandidatesKey])

	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "scitune: Fit: bad input", entries[1][ErrorKey])
	assert.Equal(t, "lasso", entries[1][FamilyKey])
}

func TestZerologProviderSetLevel(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo, FormatJSON)
	assert.False(t, p.GetLogger().Enabled(context.Background(), LevelDebug))

	p.SetLevel(LevelDebug)
	logger := p.GetLogger()
	assert.True(t, logger.Enabled(context.Background(), LevelDebug))
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				var vErr *scierrors.ValidationError
				assert.True(t, scierrors.As(err, &vErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggerRejectsUnknownFormat(t *testing.T) {
	prev := Provider()
	defer SetProvider(prev)

	assert.Error(t, SetupLogger("info", "xml"))
	assert.NoError(t, SetupLogger("debug", FormatConsole))
}

func TestWarningsRouteToProvider(t *testing.T) {
	prev := Provider()
	defer SetProvider(prev)

	p, _ := NewTestLoggerProvider(LevelDebug)
	SetProvider(p)

	scierrors.Warn(scierrors.NewConvergenceWarning("Lasso", 10, ""))
	assert.True(t, p.Logger().ContainsMessage("Lasso failed to converge after 10 iterations"))
	assert.True(t, p.Logger().ContainsField(ComponentKey, "warnings"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
