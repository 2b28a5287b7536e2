package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/rtscope/internal/core/config"
	"github.com/hay-kot/rtscope/internal/printer"
)

const maskedSecret = "********"

type ConfigCmd struct {
	flags  *Flags
	format string
}

// NewConfigCmd creates the config command group.
func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags}
}

// Register adds the config commands to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Inspect and validate the configuration",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "rtscope config validate [--format json]",
				Description: "Checks the bus address scheme, decoder, channel definitions, video settings and the export filename template.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       FormatText,
						Destination: &cmd.format,
					},
				},
				Action: cmd.runValidate,
			},
			{
				Name:        "show",
				Usage:       "Print the effective configuration",
				UsageText:   "rtscope config show",
				Description: "Prints the configuration after defaults are applied, as YAML. Secrets are masked.",
				Action:      cmd.runShow,
			},
			{
				Name:      "path",
				Usage:     "Print the config file and data locations",
				UsageText: "rtscope config path",
				Action:    cmd.runPath,
			},
		},
	})

	return app
}

func (cmd *ConfigCmd) config() (*config.Config, error) {
	if cmd.flags.Config == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cmd.flags.Config, nil
}

func (cmd *ConfigCmd) runValidate(ctx context.Context, c *cli.Command) error {
	cfg, err := cmd.config()
	if err != nil {
		return err
	}

	report := newValidation(cfg.ValidateDeep(cmd.flags.ConfigPath), cfg.Warnings())

	if cmd.format == FormatJSON {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	report.print(printer.Ctx(ctx))
	if !report.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *ConfigCmd) runShow(_ context.Context, c *cli.Command) error {
	cfg, err := cmd.config()
	if err != nil {
		return err
	}
	return writeConfigYAML(c.Root().Writer, *cfg)
}

// writeConfigYAML encodes cfg with secrets masked.
func writeConfigYAML(w io.Writer, cfg config.Config) error {
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = maskedSecret
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func (cmd *ConfigCmd) runPath(_ context.Context, c *cli.Command) error {
	cfg, err := cmd.config()
	if err != nil {
		return err
	}

	status := "missing"
	if _, err := os.Stat(cmd.flags.ConfigPath); err == nil {
		status = "found"
	}

	w := c.Root().Writer
	_, err = fmt.Fprintf(w, "config      %s (%s)\ndata        %s\ntopics      %s\nrecordings  %s\n",
		cmd.flags.ConfigPath, status, cfg.DataDir, cfg.TopicsDir(), cfg.RecordingsDir())
	return err
}

type validationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type validation struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationError          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func newValidation(err error, warnings []config.ValidationWarning) validation {
	v := validation{Valid: err == nil, Warnings: warnings}
	if err == nil {
		return v
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		v.Errors = []validationError{{Message: err.Error()}}
		return v
	}
	for _, fe := range fieldErrs {
		v.Errors = append(v.Errors, validationError{Field: fe.Field, Message: fe.Err.Error()})
	}
	return v
}

func (v validation) print(p *printer.Printer) {
	if len(v.Errors) > 0 {
		p.Section("Errors")
		for _, e := range v.Errors {
			p.FailItem(firstNonEmpty(e.Field, "config"), e.Message)
		}
		p.Printf("")
	}

	if len(v.Warnings) > 0 {
		p.Section("Warnings")
		for _, w := range v.Warnings {
			label := w.Category
			if w.Item != "" {
				label += " " + w.Item
			}
			p.WarnItem(label, w.Message)
		}
		p.Printf("")
	}

	switch {
	case !v.Valid:
		p.Errorf("%d error(s), %d warning(s)", len(v.Errors), len(v.Warnings))
	case len(v.Warnings) > 0:
		p.Successf("Configuration is valid (%d warning(s))", len(v.Warnings))
	default:
		p.Successf("Configuration is valid")
	}
}
