package common

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tailscale/hujson"

	"github.com/joseph-ayodele/routecards/constants"
)

// ConfigFileName is the project config file picked up from the working directory.
const ConfigFileName = "routecards.json"

//go:embed config.schema.json
var configSchema []byte

// Config holds all application configuration
type Config struct {
	Ledger   LedgerConfig
	Template TemplateConfig
	Output   OutputConfig
	Batch    BatchConfig
	Layout   LayoutConfig
}

// LedgerConfig holds ledger store configuration. DSN is a SQLite path / file: URI,
// or a postgres:// URL.
type LedgerConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

type TemplateConfig struct {
	Path string
}

// OutputConfig controls where generated documents go: {Dir}/{Prefix}_{number}.{Ext}.
type OutputConfig struct {
	Dir    string
	Prefix string
	Ext    string
}

type BatchConfig struct {
	NumberWidth int
	MaxCount    int
}

// LayoutConfig holds placement constants in EMU.
type LayoutConfig struct {
	QRSize      int64
	Margin      int64
	AnchorText  string
	LabelWidth  int64
	LabelHeight int64
	LabelPolicy string
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			DSN:             "route_cards.db",
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Template: TemplateConfig{Path: constants.DefaultTemplatePath},
		Output: OutputConfig{
			Dir:    constants.DefaultOutputDir,
			Prefix: constants.DefaultOutputPrefix,
			Ext:    constants.DefaultOutputExt,
		},
		Batch: BatchConfig{
			NumberWidth: constants.FormNumberWidth,
			MaxCount:    constants.MaxBatchCount,
		},
		Layout: LayoutConfig{
			QRSize:      400000,
			Margin:      200000,
			AnchorText:  constants.DefaultAnchorText,
			LabelWidth:  1000000,
			LabelHeight: 400000,
			LabelPolicy: "corner",
		},
	}
}

// LoadConfig loads configuration with the following precedence (highest wins):
// defaults, config file, environment variables.
// An explicit configPath must exist; otherwise routecards.json is read if present.
func LoadConfig(configPath string) (*Config, error) {
	return loadConfig(configPath, os.Getenv)
}

func loadConfig(configPath string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	path, mustExist := configPath, true
	if path == "" {
		path, mustExist = ConfigFileName, false
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := applyConfigFile(cfg, data); err != nil {
			return nil, WrapAppError(CodeConfig, "config file "+path, ErrInvalidInput, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !mustExist:
	default:
		return nil, WrapAppError(CodeConfig, "read config file "+path, ErrInvalidInput, err)
	}

	applyEnv(cfg, env(getenv))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type fileConfig struct {
	Ledger *struct {
		DSN              *string `json:"dsn"`
		MaxConns         *int32  `json:"max_conns"`
		MinConns         *int32  `json:"min_conns"`
		MaxConnLifetime  *string `json:"max_conn_lifetime"`
		MaxConnIdleTime  *string `json:"max_conn_idle_time"`
		DialTimeout      *string `json:"dial_timeout"`
		StatementTimeout *string `json:"statement_timeout"`
	} `json:"ledger"`
	Template *struct {
		Path *string `json:"path"`
	} `json:"template"`
	Output *struct {
		Dir    *string `json:"dir"`
		Prefix *string `json:"prefix"`
		Ext    *string `json:"ext"`
	} `json:"output"`
	Batch *struct {
		NumberWidth *int `json:"number_width"`
		MaxCount    *int `json:"max_count"`
	} `json:"batch"`
	Layout *struct {
		QRSize      *int64  `json:"qr_size"`
		Margin      *int64  `json:"margin"`
		AnchorText  *string `json:"anchor_text"`
		LabelWidth  *int64  `json:"label_width"`
		LabelHeight *int64  `json:"label_height"`
		LabelPolicy *string `json:"label_policy"`
	} `json:"layout"`
}

// applyConfigFile merges a JSONC config file into cfg after validating it against the schema.
func applyConfigFile(cfg *Config, data []byte) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	if err := validateAgainstSchema(standardized); err != nil {
		return err
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if l := fc.Ledger; l != nil {
		setIf(&cfg.Ledger.DSN, l.DSN)
		setIf(&cfg.Ledger.MaxConns, l.MaxConns)
		setIf(&cfg.Ledger.MinConns, l.MinConns)
		for _, d := range []struct {
			dst *time.Duration
			src *string
			key string
		}{
			{&cfg.Ledger.MaxConnLifetime, l.MaxConnLifetime, "max_conn_lifetime"},
			{&cfg.Ledger.MaxConnIdleTime, l.MaxConnIdleTime, "max_conn_idle_time"},
			{&cfg.Ledger.DialTimeout, l.DialTimeout, "dial_timeout"},
			{&cfg.Ledger.StatementTimeout, l.StatementTimeout, "statement_timeout"},
		} {
			if d.src == nil {
				continue
			}
			v, err := time.ParseDuration(*d.src)
			if err != nil {
				return fmt.Errorf("ledger.%s: %w", d.key, err)
			}
			*d.dst = v
		}
	}
	if t := fc.Template; t != nil {
		setIf(&cfg.Template.Path, t.Path)
	}
	if o := fc.Output; o != nil {
		setIf(&cfg.Output.Dir, o.Dir)
		setIf(&cfg.Output.Prefix, o.Prefix)
		setIf(&cfg.Output.Ext, o.Ext)
	}
	if b := fc.Batch; b != nil {
		setIf(&cfg.Batch.NumberWidth, b.NumberWidth)
		setIf(&cfg.Batch.MaxCount, b.MaxCount)
	}
	if l := fc.Layout; l != nil {
		setIf(&cfg.Layout.QRSize, l.QRSize)
		setIf(&cfg.Layout.Margin, l.Margin)
		setIf(&cfg.Layout.AnchorText, l.AnchorText)
		setIf(&cfg.Layout.LabelWidth, l.LabelWidth)
		setIf(&cfg.Layout.LabelHeight, l.LabelHeight)
		setIf(&cfg.Layout.LabelPolicy, l.LabelPolicy)
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func validateAgainstSchema(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(configSchema)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, e env) {
	cfg.Ledger.DSN = e.get("LEDGER_DSN", cfg.Ledger.DSN)
	cfg.Ledger.MaxConns = e.asInt32("LEDGER_MAX_CONNS", cfg.Ledger.MaxConns)
	cfg.Ledger.MinConns = e.asInt32("LEDGER_MIN_CONNS", cfg.Ledger.MinConns)
	cfg.Ledger.MaxConnLifetime = e.asDuration("LEDGER_MAX_CONN_LIFETIME", cfg.Ledger.MaxConnLifetime)
	cfg.Ledger.MaxConnIdleTime = e.asDuration("LEDGER_MAX_CONN_IDLE_TIME", cfg.Ledger.MaxConnIdleTime)
	cfg.Ledger.DialTimeout = e.asDuration("LEDGER_DIAL_TIMEOUT", cfg.Ledger.DialTimeout)
	cfg.Ledger.StatementTimeout = e.asDuration("LEDGER_STATEMENT_TIMEOUT", cfg.Ledger.StatementTimeout)

	cfg.Template.Path = e.get("TEMPLATE_PATH", cfg.Template.Path)

	cfg.Output.Dir = e.get("OUTPUT_DIR", cfg.Output.Dir)
	cfg.Output.Prefix = e.get("OUTPUT_PREFIX", cfg.Output.Prefix)
	cfg.Output.Ext = e.get("OUTPUT_EXT", cfg.Output.Ext)

	cfg.Batch.NumberWidth = e.asInt("FORM_NUMBER_WIDTH", cfg.Batch.NumberWidth)
	cfg.Batch.MaxCount = e.asInt("BATCH_MAX_COUNT", cfg.Batch.MaxCount)

	cfg.Layout.QRSize = e.asInt64("LAYOUT_QR_SIZE", cfg.Layout.QRSize)
	cfg.Layout.Margin = e.asInt64("LAYOUT_MARGIN", cfg.Layout.Margin)
	cfg.Layout.AnchorText = e.get("LAYOUT_ANCHOR_TEXT", cfg.Layout.AnchorText)
	cfg.Layout.LabelWidth = e.asInt64("LAYOUT_LABEL_WIDTH", cfg.Layout.LabelWidth)
	cfg.Layout.LabelHeight = e.asInt64("LAYOUT_LABEL_HEIGHT", cfg.Layout.LabelHeight)
	cfg.Layout.LabelPolicy = e.get("LAYOUT_LABEL_POLICY", cfg.Layout.LabelPolicy)
}

// Helper functions for environment variable parsing
type env func(string) string

func (e env) get(key, defaultValue string) string {
	if value := strings.TrimSpace(e(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e env) asInt(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (e env) asInt32(key string, defaultValue int32) int32 {
	if value := e(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func (e env) asInt64(key string, defaultValue int64) int64 {
	if value := e(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (e env) asDuration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("ledger.dsn", c.Ledger.DSN, Required).
		Field("template.path", c.Template.Path, Required).
		Field("output.dir", c.Output.Dir, Required).
		Field("output.prefix", c.Output.Prefix, Required, MaxLength(constants.MaxOutputPrefixLength)).
		Field("output.ext", constants.NormalizeExt(c.Output.Ext), Required).
		Field("batch.number_width", c.Batch.NumberWidth, IntBetween(1, 18)).
		Field("batch.max_count", c.Batch.MaxCount, IntBetween(1, 1_000_000)).
		Field("layout.anchor_text", c.Layout.AnchorText, Required).
		Field("layout.label_policy", c.Layout.LabelPolicy, OneOf("corner", "adjacent"))
	if c.Layout.QRSize <= 0 || c.Layout.LabelWidth <= 0 || c.Layout.LabelHeight <= 0 || c.Layout.Margin < 0 {
		v.Field("layout", c.Layout, func(fieldName string, value any) *ValidationError {
			return &ValidationError{Field: fieldName, Value: value, Message: "sizes must be positive and margin non-negative"}
		})
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
