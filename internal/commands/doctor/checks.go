package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/rtscope/internal/core/config"
	"github.com/hay-kot/rtscope/internal/core/media"
	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/store/jsonfile"
	"github.com/hay-kot/rtscope/internal/video"
	"github.com/hay-kot/rtscope/pkg/executil"
)

// ConfigCheck validates the configuration file.
type ConfigCheck struct {
	config     *config.Config
	configPath string
}

func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{config: cfg, configPath: configPath}
}

func (c *ConfigCheck) Name() string { return "Configuration" }

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	err := c.config.ValidateDeep(c.configPath)
	warnings := c.config.Warnings()

	if err == nil && len(warnings) == 0 {
		result.Items = append(result.Items, CheckItem{Label: "Config valid", Status: StatusPass})
		return result
	}

	if err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			fieldErrs = criterio.FieldErrors{{Err: err}}
		}
		for _, fe := range fieldErrs {
			label := fe.Field
			if label == "" {
				label = "validation"
			}
			result.Items = append(result.Items, CheckItem{
				Label:  label,
				Status: StatusFail,
				Detail: fe.Err.Error(),
			})
		}
	}

	for _, w := range warnings {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	return result
}

// FFmpegCheck verifies the encoder binary needed by the configured codec.
type FFmpegCheck struct {
	exec  executil.Executor
	path  string
	codec string
}

func NewFFmpegCheck(exec executil.Executor, path, codec string) *FFmpegCheck {
	return &FFmpegCheck{exec: exec, path: path, codec: codec}
}

func (c *FFmpegCheck) Name() string { return "Video" }

func (c *FFmpegCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	codec, err := media.ParseFourCC(c.codec)
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: "codec", Status: StatusFail, Detail: err.Error()})
		return result
	}
	result.Items = append(result.Items, CheckItem{Label: "codec", Status: StatusPass, Detail: codec.String()})

	version, err := video.CheckFFmpeg(ctx, c.exec, c.path)
	switch {
	case err == nil:
		result.Items = append(result.Items, CheckItem{Label: "ffmpeg", Status: StatusPass, Detail: version})
	case codec.IsImageSequence():
		result.Items = append(result.Items, CheckItem{
			Label:  "ffmpeg",
			Status: StatusWarn,
			Detail: "not available; only image sequences can be recorded",
		})
	default:
		result.Items = append(result.Items, CheckItem{Label: "ffmpeg", Status: StatusFail, Detail: err.Error()})
	}

	return result
}

// BusCheck dials the configured address once.
type BusCheck struct {
	dialer  messaging.Dialer
	address string
	topic   string
	timeout time.Duration
}

func NewBusCheck(dialer messaging.Dialer, address, topic string, timeout time.Duration) *BusCheck {
	return &BusCheck{dialer: dialer, address: address, topic: topic, timeout: timeout}
}

func (c *BusCheck) Name() string { return "Message Bus" }

func (c *BusCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	sock, err := c.dialer.Dial(ctx, c.address, c.topic)
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: c.address, Status: StatusFail, Detail: err.Error()})
		return result
	}

	item := CheckItem{Label: c.address, Status: StatusPass, Detail: "connected"}
	if err := sock.Close(); err != nil && !errors.Is(err, messaging.ErrClosed) {
		item.Status = StatusWarn
		item.Detail = "connected, close failed: " + err.Error()
	}
	result.Items = append(result.Items, item)
	return result
}

// StorageCheck verifies the data directory and the recorded topics in it.
type StorageCheck struct {
	dataDir   string
	topicsDir string
	fix       bool
}

func NewStorageCheck(dataDir, topicsDir string, fix bool) *StorageCheck {
	return &StorageCheck{dataDir: dataDir, topicsDir: topicsDir, fix: fix}
}

func (c *StorageCheck) Name() string { return "Storage" }

func (c *StorageCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := os.Stat(c.dataDir)
	switch {
	case os.IsNotExist(err) && c.fix:
		if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
			result.Items = append(result.Items, CheckItem{Label: "data dir", Status: StatusFail, Detail: err.Error()})
			return result
		}
		result.Items = append(result.Items, CheckItem{Label: "data dir", Status: StatusPass, Detail: "created " + c.dataDir})
	case os.IsNotExist(err):
		result.Items = append(result.Items, CheckItem{
			Label:   "data dir",
			Status:  StatusWarn,
			Detail:  c.dataDir + " does not exist",
			Fixable: true,
		})
		return result
	case err != nil:
		result.Items = append(result.Items, CheckItem{Label: "data dir", Status: StatusFail, Detail: err.Error()})
		return result
	case !info.IsDir():
		result.Items = append(result.Items, CheckItem{Label: "data dir", Status: StatusFail, Detail: c.dataDir + " is not a directory"})
		return result
	default:
		if err := checkWritable(c.dataDir); err != nil {
			result.Items = append(result.Items, CheckItem{Label: "data dir", Status: StatusFail, Detail: err.Error()})
			return result
		}
		result.Items = append(result.Items, CheckItem{Label: "data dir", Status: StatusPass, Detail: c.dataDir})
	}

	topics, err := jsonfile.NewMsgStore(c.topicsDir).List(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: "topics", Status: StatusFail, Detail: err.Error()})
		return result
	}
	result.Items = append(result.Items, CheckItem{
		Label:  "topics",
		Status: StatusPass,
		Detail: fmt.Sprintf("%d recorded topic(s)", len(topics)),
	})

	return result
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".rtscope-doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
