package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/core/config"
	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/store/jsonfile"
	"github.com/hay-kot/rtscope/internal/transport/memory"
	"github.com/hay-kot/rtscope/pkg/executil"
)

func TestConfigCheck(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Video.Codec = "PNG" // keeps the ffmpeg lookup out of the result

	result := NewConfigCheck(&cfg, "").Run(context.Background())
	assert.Equal(t, "Configuration", result.Name)
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)

	cfg.Subscriber.Decoder = "protobuf"
	cfg.Subscriber.History = true
	result = NewConfigCheck(&cfg, "").Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, "subscriber.decoder", result.Items[0].Label)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Equal(t, "Subscriber (history)", result.Items[1].Label)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
}

func TestConfigCheck_NotLoaded(t *testing.T) {
	result := NewConfigCheck(nil, "").Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestFFmpegCheck(t *testing.T) {
	exec := &executil.RecordingExecutor{
		Outputs: map[string][]byte{"ffmpeg": []byte("ffmpeg version 7.0\n")},
	}

	result := NewFFmpegCheck(exec, "ffmpeg", "mp4v").Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[1].Status)
	assert.Equal(t, "ffmpeg version 7.0", result.Items[1].Detail)

	exec.Errors = map[string]error{"ffmpeg": errors.New("executable file not found")}
	result = NewFFmpegCheck(exec, "ffmpeg", "mp4v").Run(context.Background())
	assert.Equal(t, StatusFail, result.Items[1].Status)

	result = NewFFmpegCheck(exec, "ffmpeg", "png").Run(context.Background())
	assert.Equal(t, StatusWarn, result.Items[1].Status)

	result = NewFFmpegCheck(exec, "ffmpeg", "vp09").Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestBusCheck(t *testing.T) {
	bus := memory.New(messaging.DefaultHWM)

	result := NewBusCheck(bus, "mem://demo", "", time.Second).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Zero(t, bus.Subscribers(), "probe socket is closed")

	refuse := messaging.DialerFunc(func(context.Context, string, string) (messaging.Socket, error) {
		return nil, errors.New("connection refused")
	})
	result = NewBusCheck(refuse, "tcp://127.0.0.1:1", "", time.Second).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Detail, "connection refused")
}

func TestStorageCheck(t *testing.T) {
	dataDir := t.TempDir()
	topicsDir := filepath.Join(dataDir, "topics")

	store := jsonfile.NewMsgStore(topicsDir)
	require.NoError(t, store.Publish(context.Background(), messaging.Record{Topic: "imu", Payload: "1,2,3"}))

	result := NewStorageCheck(dataDir, topicsDir, false).Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "1 recorded topic(s)", result.Items[1].Detail)
}

func TestStorageCheck_Missing(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "rtscope")

	result := NewStorageCheck(dataDir, filepath.Join(dataDir, "topics"), false).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusWarn, result.Items[0].Status)
	assert.Equal(t, 1, Summarize([]Result{result}).Fixable)

	result = NewStorageCheck(dataDir, filepath.Join(dataDir, "topics"), true).Run(context.Background())
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.DirExists(t, dataDir)
}

func TestStorageCheck_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	result := NewStorageCheck(file, filepath.Join(file, "topics"), false).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestSummarize(t *testing.T) {
	results := RunAll(context.Background(), []Check{
		NewConfigCheck(nil, ""),
		NewStorageCheck(t.TempDir(), t.TempDir(), false),
	})

	tally := Summarize(results)
	assert.Equal(t, 2, tally.Passed)
	assert.Zero(t, tally.Warned)
	assert.Equal(t, 1, tally.Failed)
	assert.False(t, tally.Healthy())
	assert.Equal(t, StatusFail, results[0].Worst())
	assert.Equal(t, StatusPass, results[1].Worst())
}

func TestRunAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunAll(ctx, []Check{NewStorageCheck(t.TempDir(), t.TempDir(), false)})
	require.Len(t, results, 1)
	assert.Equal(t, "Storage", results[0].Name)
	assert.Equal(t, StatusFail, results[0].Worst())
}

func TestReport_JSON(t *testing.T) {
	report := NewReport([]Result{{
		Name:  "Bus",
		Items: []CheckItem{{Label: "Dial", Status: StatusWarn, Detail: "slow"}},
	}})

	b, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"healthy": true,
		"summary": {"passed": 0, "warned": 1, "failed": 0, "fixable": 0},
		"checks": [{"name": "Bus", "items": [{"label": "Dial", "status": "warn", "detail": "slow"}]}]
	}`, string(b))

	var back Report
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, report, back)
}
