package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"lab47.dev/mrinstall/pkg/cleanhttp"
	"lab47.dev/mrinstall/pkg/gamefiles"
	"lab47.dev/mrinstall/pkg/loader"
	"lab47.dev/mrinstall/pkg/modrinth"
)

type Config struct {
	path      string
	configDir string

	// Actual Config
	DataDir            string `json:"data-dir"`
	ProfilesPath       string `json:"profiles-path,omitempty"`
	CachesPath         string `json:"caches-path,omitempty"`
	APIURL             string `json:"api-url"`
	MetaURL            string `json:"meta-url"`
	VersionManifestURL string `json:"version-manifest-url"`
	MaxDownloads       int    `json:"max-downloads"`
	MaxWrites          int    `json:"max-writes"`
	Workers            int    `json:"install-workers"`
	UserAgent          string `json:"user-agent,omitempty"`
}

const (
	DefaultConfigPath   = "~/.config/mrinstall/config.json"
	DefaultDataDir      = "~/.local/share/mrinstall"
	DefaultMaxDownloads = 10
	DefaultWorkers      = 10
)

var ErrBadValue = errors.New("invalid configuration value")

// LoadConfig reads the config file, falling back to defaults when there
// is none, then applies MRINSTALL_* environment overrides and makes sure
// every directory the config names exists.
func LoadConfig() (*Config, error) {
	if loc := os.Getenv("MRINSTALL_CONFIG"); loc != "" {
		return loadFile(loc)
	}

	path, err := homedir.Expand(DefaultConfigPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return loadFile(path)
	}

	cfg := &Config{
		path:      path,
		configDir: filepath.Dir(path),
	}

	err = cfg.setDefaults()
	if err != nil {
		return nil, err
	}

	return updateFromEnv(cfg)
}

func loadFile(path string) (*Config, error) {
	cfg := &Config{
		path:      path,
		configDir: filepath.Dir(path),
	}

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		defer f.Close()

		err = json.NewDecoder(f).Decode(cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
	}

	err = cfg.setDefaults()
	if err != nil {
		return nil, err
	}

	return updateFromEnv(cfg)
}

func (c *Config) setDefaults() error {
	if c.DataDir == "" {
		dir, err := homedir.Expand(DefaultDataDir)
		if err != nil {
			return err
		}

		c.DataDir = dir
	}

	if c.APIURL == "" {
		c.APIURL = modrinth.DefaultBaseURL
	}

	if c.MetaURL == "" {
		c.MetaURL = loader.DefaultMetaURL
	}

	if c.VersionManifestURL == "" {
		c.VersionManifestURL = gamefiles.DefaultManifestURL
	}

	if c.MaxDownloads <= 0 {
		c.MaxDownloads = DefaultMaxDownloads
	}

	if c.MaxWrites <= 0 {
		c.MaxWrites = defaultWrites()
	}

	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent()
	}

	return nil
}

// defaultWrites allows one concurrent write per logical cpu.
func defaultWrites() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return 4
	}

	return n
}

// DefaultUserAgent identifies the client and the platform it runs on.
func DefaultUserAgent() string {
	osName, _, osVersion, err := host.PlatformInformation()
	if err != nil {
		return cleanhttp.DefaultUserAgent
	}

	arch, err := host.KernelArch()
	if err != nil {
		return cleanhttp.DefaultUserAgent
	}

	return fmt.Sprintf("%s (%s %s; %s)", cleanhttp.DefaultUserAgent, osName, osVersion, arch)
}

func updateFromEnv(cfg *Config) (*Config, error) {
	if path := os.Getenv("MRINSTALL_DATA_DIR"); path != "" {
		path, err := homedir.Expand(path)
		if err != nil {
			return nil, err
		}

		cfg.DataDir = path
	}

	if url := os.Getenv("MRINSTALL_API_URL"); url != "" {
		cfg.APIURL = url
	}

	if url := os.Getenv("MRINSTALL_META_URL"); url != "" {
		cfg.MetaURL = url
	}

	if val := os.Getenv("MRINSTALL_MAX_DOWNLOADS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return nil, errors.Wrapf(ErrBadValue, "MRINSTALL_MAX_DOWNLOADS=%q", val)
		}

		cfg.MaxDownloads = n
	}

	return ensureDirs(cfg)
}

func ensureDirs(cfg *Config) (*Config, error) {
	dirs := []string{
		cfg.DataDir,
		cfg.Profiles(),
		cfg.IconsPath(),
	}

	for _, dir := range dirs {
		fi, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				err = os.MkdirAll(dir, 0755)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		} else if !fi.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", dir)
		}
	}

	return cfg, nil
}

// Save writes the config back to the file it was loaded from.
func (c *Config) Save() error {
	err := os.MkdirAll(c.configDir, 0755)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(c.path, append(data, '\n'), 0644)
}

func (c *Config) ConfigPath() string {
	return c.path
}

func (c *Config) ConfigDir() string {
	return c.configDir
}

// Profiles is where installed profiles live.
func (c *Config) Profiles() string {
	if c.ProfilesPath != "" {
		return c.ProfilesPath
	}

	return filepath.Join(c.DataDir, "profiles")
}

func (c *Config) Caches() string {
	if c.CachesPath != "" {
		return c.CachesPath
	}

	return filepath.Join(c.DataDir, "caches")
}

func (c *Config) IconsPath() string {
	return filepath.Join(c.Caches(), "icons")
}

// LockPath is held while an install runs so concurrent invocations
// queue up instead of racing on the same profiles.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, ".install-lock")
}
