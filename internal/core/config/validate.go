package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/rtscope/internal/core/media"
	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/series"
	"github.com/hay-kot/rtscope/internal/transport"
	"github.com/hay-kot/rtscope/pkg/tmpl"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this checks addresses, channels, templates and file
// access. The returned error is a criterio.FieldErrors.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = errs.Append(fe.Field, fe.Err)
			}
		} else {
			errs = errs.Append("", err)
		}
	}

	errs = c.validateFileAccess(errs, configPath)
	errs = c.validateSubscriber(errs)
	errs = c.validateChannels(errs)
	errs = c.validateVideo(errs)
	errs = c.validateExport(errs)

	return errs.ToError()
}

func (c *Config) validateFileAccess(errs criterio.FieldErrorsBuilder, configPath string) criterio.FieldErrorsBuilder {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				errs = errs.Append("config", fmt.Errorf("cannot read %s: %w", configPath, err))
			} else {
				_ = f.Close()
			}
		}
	}

	if c.DataDir != "" {
		info, err := os.Stat(c.DataDir)
		switch {
		case err == nil && !info.IsDir():
			errs = errs.Append("data_dir", fmt.Errorf("%s is not a directory", c.DataDir))
		case err != nil && !os.IsNotExist(err):
			errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
		}
	}

	return errs
}

func (c *Config) validateSubscriber(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	scheme, err := transport.SchemeOf(c.Subscriber.Address)
	switch {
	case err != nil:
		errs = errs.Append("subscriber.address", err)
	case !slices.Contains(transport.KnownSchemes(), scheme):
		errs = errs.Append("subscriber.address", fmt.Errorf("unknown scheme %q (known: %s)",
			scheme, strings.Join(transport.KnownSchemes(), ", ")))
	}

	if _, err := messaging.DecoderByName(c.Subscriber.Decoder); err != nil {
		errs = errs.Append("subscriber.decoder", err)
	}

	return errs
}

func (c *Config) validateChannels(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	seen := make(map[string]bool, len(c.Channels))

	for i, ch := range c.Channels {
		field := fmt.Sprintf("channels[%d]", i)

		switch {
		case ch.Title == "":
			errs = errs.Append(field+".title", fmt.Errorf("is required"))
		case seen[ch.Title]:
			errs = errs.Append(field+".title", fmt.Errorf("duplicate title %q", ch.Title))
		}
		seen[ch.Title] = true

		if _, err := series.ParseMode(string(ch.Mode)); err != nil {
			errs = errs.Append(field+".mode", err)
		}
		if ch.Field < 0 {
			errs = errs.Append(field+".field", fmt.Errorf("must not be negative"))
		}
		if ch.Window < 0 {
			errs = errs.Append(field+".window", fmt.Errorf("must not be negative"))
		}
		if ch.Deadband < 0 {
			errs = errs.Append(field+".deadband", fmt.Errorf("must not be negative"))
		}
		if !ch.YRange.IsZero() && ch.YRange.Min >= ch.YRange.Max {
			errs = errs.Append(field+".y_range", fmt.Errorf("min %g must be below max %g", ch.YRange.Min, ch.YRange.Max))
		}
	}

	return errs
}

func (c *Config) validateVideo(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if _, err := media.ParseFourCC(c.Video.Codec); err != nil {
		errs = errs.Append("video.codec", err)
	}
	if c.Video.FPS == 0 {
		errs = errs.Append("video.fps", fmt.Errorf("must be positive"))
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		errs = errs.Append("video.size", fmt.Errorf("width and height must be positive, got %dx%d", c.Video.Width, c.Video.Height))
	}
	return errs
}

func (c *Config) validateExport(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if err := validateTemplate(c.Export.Template, series.FilenameData{}); err != nil {
		errs = errs.Append("export.template", fmt.Errorf("template error: %w", err))
	}
	return errs
}

// Warnings returns non-fatal issues: settings that work but are probably not
// what the user wants.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Subscriber.PollInterval == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Subscriber",
			Item:     "poll_interval",
			Message:  "zero poll interval keeps one core busy while idle",
		})
	}
	if c.Subscriber.History {
		warnings = append(warnings, ValidationWarning{
			Category: "Subscriber",
			Item:     "history",
			Message:  "history is kept in memory for the whole session",
		})
	}

	if codec, err := media.ParseFourCC(c.Video.Codec); err == nil && !codec.IsImageSequence() {
		if _, err := exec.LookPath(c.FFmpegPath); err != nil {
			warnings = append(warnings, ValidationWarning{
				Category: "Video",
				Item:     c.FFmpegPath,
				Message:  fmt.Sprintf("not found in PATH; codec %s needs ffmpeg", codec),
			})
		}
	}

	if c.Export.Dir != "" {
		if _, err := os.Stat(c.Export.Dir); os.IsNotExist(err) {
			warnings = append(warnings, ValidationWarning{
				Category: "Export",
				Item:     "dir",
				Message:  fmt.Sprintf("%s does not exist and will be created", c.Export.Dir),
			})
		}
	}

	if c.MQTT.Password != "" && c.MQTT.Username == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "MQTT",
			Item:     "password",
			Message:  "password is ignored without a username",
		})
	}

	return warnings
}

// validateTemplate dry-runs a template with zero-value data so syntax errors
// and unknown fields surface before the first export.
func validateTemplate(tmplStr string, data any) error {
	_, err := tmpl.Render(tmplStr, data)
	return err
}
