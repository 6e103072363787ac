package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = ".zmconfig"
	DefaultProtocol   = ProtocolZOSMF
	DefaultZOSMFPort  = 443
	DefaultFTPPort    = 21

	ProtocolZOSMF = "zosmf"
	ProtocolFTP   = "ftp"

	// EnvPrefix is prepended to environment overrides, e.g. ZM_HOST.
	EnvPrefix = "ZM"
)

var ErrNotFound = errors.New("config file not found")

type Profile struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Protocol string `yaml:"protocol"` // zosmf, ftp
	HLQ      string `yaml:"hlq,omitempty"`
	USSHome  string `yaml:"uss_home,omitempty"`

	// z/OSMF tuning, zero means the library default.
	Insecure     bool          `yaml:"insecure,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	PollTimeout  time.Duration `yaml:"poll_timeout,omitempty"`
	PageSize     int           `yaml:"page_size,omitempty"`
	ChunkRecords int           `yaml:"chunk_records,omitempty"`
	RateLimit    float64       `yaml:"rate_limit,omitempty"`
	LogLevel     string        `yaml:"log_level,omitempty"`
	// DataType is the X-IBM-Data-Type for reads and writes: text, binary
	// or record. Empty means text.
	DataType string `yaml:"data_type,omitempty"`
}

type Config struct {
	Profiles       map[string]*Profile `yaml:"profiles"`
	DefaultProfile string              `yaml:"default_profile"`
}

// DefaultPath returns ~/.zmconfig.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigFile), nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s\nRun 'zm config setup' to create one", ErrNotFound, path)
		}
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	for _, p := range cfg.Profiles {
		p.applyDefaults()
	}

	return &cfg, nil
}

func (p *Profile) applyDefaults() {
	if p.Protocol == "" {
		p.Protocol = DefaultProtocol
	}
	p.Protocol = strings.ToLower(p.Protocol)
	if p.Port == 0 {
		p.Port = DefaultPort(p.Protocol)
	}
}

// DefaultPort is the well-known port for protocol.
func DefaultPort(protocol string) int {
	if protocol == ProtocolFTP {
		return DefaultFTPPort
	}
	return DefaultZOSMFPort
}

func (c *Config) Save(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	// 0600: owner read/write only (contains password)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}

	return nil
}

func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return nil, fmt.Errorf("no profile specified and no default profile set")
	}

	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}

	return p, nil
}

// Validate reports every problem with the profile at once.
func (p *Profile) Validate() error {
	var result *multierror.Error
	if p.Host == "" {
		result = multierror.Append(result, errors.New("host is required"))
	}
	if p.User == "" {
		result = multierror.Append(result, errors.New("user is required"))
	}
	if p.Password == "" {
		result = multierror.Append(result, errors.New("password is required"))
	}
	if p.Protocol != ProtocolZOSMF && p.Protocol != ProtocolFTP {
		result = multierror.Append(result, fmt.Errorf("protocol must be '%s' or '%s'", ProtocolZOSMF, ProtocolFTP))
	}
	if p.Port < 0 || p.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port %d out of range", p.Port))
	}
	if p.PollInterval < 0 || p.PollTimeout < 0 {
		result = multierror.Append(result, errors.New("poll_interval and poll_timeout must not be negative"))
	}
	if p.PageSize < 0 || p.ChunkRecords < 0 || p.RateLimit < 0 {
		result = multierror.Append(result, errors.New("page_size, chunk_records and rate_limit must not be negative"))
	}
	switch p.DataType {
	case "", "text", "binary", "record":
	default:
		result = multierror.Append(result, fmt.Errorf("data_type must be text, binary or record, got '%s'", p.DataType))
	}
	return result.ErrorOrNil()
}

// BaseURL is the z/OSMF endpoint for the profile.
func (p *Profile) BaseURL() string {
	return fmt.Sprintf("https://%s:%d", p.Host, p.Port)
}

var envKeys = []string{"host", "port", "user", "password", "protocol", "log_level"}

// ApplyEnv overrides profile fields from ZM_* environment variables. A nil
// profile starts empty. It reports whether any variable was set.
func ApplyEnv(p *Profile) (*Profile, bool) {
	if p == nil {
		p = &Profile{}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	set := false
	if v.IsSet("host") {
		p.Host, set = v.GetString("host"), true
	}
	if v.IsSet("user") {
		p.User, set = v.GetString("user"), true
	}
	if v.IsSet("password") {
		p.Password, set = v.GetString("password"), true
	}
	if v.IsSet("protocol") {
		p.Protocol, set = strings.ToLower(v.GetString("protocol")), true
		if !v.IsSet("port") {
			p.Port = 0
		}
	}
	if v.IsSet("port") {
		p.Port, set = v.GetInt("port"), true
	}
	if v.IsSet("log_level") {
		p.LogLevel, set = v.GetString("log_level"), true
	}

	p.applyDefaults()
	return p, set
}
