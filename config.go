package dieseltri

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"gopkg.in/yaml.v3"
)

// Config holds everything the renderer reads at startup. Zero values are
// not meaningful; start from DefaultConfig.
type Config struct {
	Title  string `toml:"title" yaml:"title"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`

	// Debug enables the validation layers and the debug report callback.
	Debug            bool     `toml:"debug" yaml:"debug"`
	ValidationLayers []string `toml:"validation_layers" yaml:"validation_layers"`
	DeviceExtensions []string `toml:"device_extensions" yaml:"device_extensions"`

	VertexShader   string     `toml:"vertex_shader" yaml:"vertex_shader"`
	FragmentShader string     `toml:"fragment_shader" yaml:"fragment_shader"`
	ClearColor     [4]float32 `toml:"clear_color" yaml:"clear_color"`

	// AcquireTimeoutMillis bounds the wait for a swapchain image. Zero
	// waits forever.
	AcquireTimeoutMillis int  `toml:"acquire_timeout_ms" yaml:"acquire_timeout_ms"`
	RebuildOnSuboptimal  bool `toml:"rebuild_on_suboptimal" yaml:"rebuild_on_suboptimal"`
	EscapeQuits          bool `toml:"escape_quits" yaml:"escape_quits"`
	MaxRebuildRetries    int  `toml:"max_rebuild_retries" yaml:"max_rebuild_retries"`

	LogLevel string `toml:"log_level" yaml:"log_level"`
	LogFile  string `toml:"log_file" yaml:"log_file"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Title:             "dieseltri",
		Width:             800,
		Height:            600,
		Debug:             debugBuild,
		ValidationLayers:  []string{"VK_LAYER_KHRONOS_validation"},
		DeviceExtensions:  []string{vk.KhrSwapchainExtensionName},
		VertexShader:      filepath.Join("shaders", "vert.spv"),
		FragmentShader:    filepath.Join("shaders", "frag.spv"),
		ClearColor:        [4]float32{0, 0, 0, 1},
		EscapeQuits:       true,
		MaxRebuildRetries: 3,
		LogLevel:          "info",
	}
}

// LoadConfig reads a TOML or YAML file on top of DefaultConfig. The format
// is picked from the file extension.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, errors.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return errors.Errorf("invalid window size %dx%d", c.Width, c.Height)
	case c.VertexShader == "" || c.FragmentShader == "":
		return errors.New("vertex and fragment shader paths are required")
	case c.AcquireTimeoutMillis < 0:
		return errors.Errorf("negative acquire timeout %d", c.AcquireTimeoutMillis)
	case c.MaxRebuildRetries < 1:
		return errors.Errorf("max rebuild retries must be at least 1, got %d", c.MaxRebuildRetries)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// AcquireTimeout is AcquireTimeoutMillis as a duration.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMillis) * time.Millisecond
}

// SlogLevel maps LogLevel onto slog. Unknown names fall back to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, errors.Wrapf(err, "log level %q", name)
	}
	return level, nil
}

// instanceExtensions splits the instance extensions to request into the
// ones the window cannot do without and the debug ones that are dropped
// with a warning when missing.
func (c *Config) instanceExtensions(window []string) (required, wanted []string) {
	required = append([]string(nil), window...)
	if c.Debug {
		wanted = append(wanted, vk.ExtDebugReportExtensionName)
	}
	return required, wanted
}

func (c *Config) swapchainConfig() SwapchainConfig {
	return SwapchainConfig{
		Width:      uint32(c.Width),
		Height:     uint32(c.Height),
		ClearColor: c.ClearColor,
	}
}

func (c *Config) framePolicy() FramePolicy {
	return FramePolicy{
		AcquireTimeout:      c.AcquireTimeout(),
		RebuildOnSuboptimal: c.RebuildOnSuboptimal,
	}
}
