package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/apiq/internal/constants"
	"github.com/fivetwenty-io/apiq/internal/zlog"
	"github.com/fivetwenty-io/apiq/pkg/apiq"
	"github.com/fivetwenty-io/apiq/pkg/restclient"
	"github.com/fivetwenty-io/apiq/pkg/store"
)

// Config represents the CLI configuration.
type Config struct {
	BaseURL    string `json:"base_url,omitempty"    yaml:"base_url,omitempty"`
	Token      string `json:"token,omitempty"       yaml:"token,omitempty"`
	RoutesFile string `json:"routes_file,omitempty" yaml:"routes_file,omitempty"`
	Output     string `json:"output,omitempty"      yaml:"output,omitempty"`
	QueryTTL   string `json:"query_ttl,omitempty"   yaml:"query_ttl,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"  yaml:"user_agent,omitempty"`

	Cache *CacheSettings `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// CacheSettings configures the snapshot cache carried across runs.
type CacheSettings struct {
	Type    string `json:"type,omitempty"     yaml:"type,omitempty"`
	TTL     string `json:"ttl,omitempty"      yaml:"ttl,omitempty"`
	MaxSize int    `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	NATSURL string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`
	Bucket  string `json:"bucket,omitempty"   yaml:"bucket,omitempty"`
}

// loadConfig assembles the CLI configuration from viper (flags over
// environment over config file).
func loadConfig() *Config {
	config := &Config{
		BaseURL:    viper.GetString("base_url"),
		Token:      viper.GetString("token"),
		RoutesFile: viper.GetString("routes_file"),
		Output:     viper.GetString("output"),
		QueryTTL:   viper.GetString("query_ttl"),
		UserAgent:  viper.GetString("user_agent"),
	}

	if cacheType := viper.GetString("cache.type"); cacheType != "" {
		config.Cache = &CacheSettings{
			Type:    cacheType,
			TTL:     viper.GetString("cache.ttl"),
			MaxSize: viper.GetInt("cache.max_size"),
			NATSURL: viper.GetString("cache.nats_url"),
			Bucket:  viper.GetString("cache.bucket"),
		}
	}

	return config
}

// saveConfig writes the configuration to the file in use, or to the
// default ~/.apiq/config.yml.
func saveConfig(config *Config) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}

		configDir := filepath.Join(home, ".apiq")

		err = os.MkdirAll(configDir, constants.ConfigDirPerm)
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		configFile = filepath.Join(configDir, "config.yml")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// clientConfig translates the CLI configuration into a client config,
// loading the route table from disk.
func clientConfig() (*apiq.Config, error) {
	baseURL := viper.GetString("base_url")
	if baseURL == "" {
		return nil, constants.ErrNoAPIConfigured
	}

	routesYAML, err := loadRoutesYAML()
	if err != nil {
		return nil, err
	}

	config := &apiq.Config{
		BaseURL:     baseURL,
		RoutesYAML:  routesYAML,
		AccessToken: viper.GetString("token"),
		QueryTTL:    viper.GetDuration("query_ttl"),
		UserAgent:   viper.GetString("user_agent"),
	}

	if viper.GetBool("verbose") {
		config.Debug = true
		config.Logger = zlog.NewConsole("debug", viper.GetBool("no_color"))
	}

	return config, nil
}

// loadRoutesYAML reads the configured route table file.
func loadRoutesYAML() ([]byte, error) {
	routesFile := viper.GetString("routes_file")
	if routesFile == "" {
		return nil, constants.ErrNoRoutesConfigured
	}

	info, err := os.Stat(routesFile)
	if err != nil {
		return nil, fmt.Errorf("reading route table: %w", err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotRegularFile, routesFile)
	}

	data, err := os.ReadFile(routesFile) // #nosec G304 -- user-supplied path by design
	if err != nil {
		return nil, fmt.Errorf("reading route table: %w", err)
	}

	return data, nil
}

// loadRoutes reads and compiles the configured route table.
func loadRoutes() (*apiq.Routes, error) {
	data, err := loadRoutesYAML()
	if err != nil {
		return nil, err
	}

	routes, err := apiq.ParseRoutesYAML(data)
	if err != nil {
		return nil, fmt.Errorf("compiling routes: %w", err)
	}

	return routes, nil
}

// buildClient assembles the proxy client from the CLI configuration.
func buildClient() (*apiq.Client, error) {
	config, err := clientConfig()
	if err != nil {
		return nil, err
	}

	opts, err := cacheOptions()
	if err != nil {
		return nil, err
	}

	client, err := restclient.New(config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}

// cacheOptions derives the snapshot cache wiring from the cache
// settings, when present.
func cacheOptions() ([]restclient.Option, error) {
	cacheConfig, err := snapshotCacheConfig()
	if err != nil {
		return nil, err
	}

	if cacheConfig == nil {
		return nil, nil
	}

	return []restclient.Option{restclient.WithCacheConfig(cacheConfig)}, nil
}

// snapshotCacheConfig translates the CLI cache settings into a cache
// config. A nil return means no snapshot cache is configured.
func snapshotCacheConfig() (*store.CacheConfig, error) {
	settings := loadConfig().Cache
	if settings == nil {
		return nil, nil
	}

	options := store.DefaultCacheOptions()
	if settings.TTL != "" {
		ttl, err := time.ParseDuration(settings.TTL)
		if err != nil {
			return nil, fmt.Errorf("parsing cache.ttl: %w", err)
		}

		options.TTL = ttl
	}

	if settings.MaxSize > 0 {
		options.MaxSize = settings.MaxSize
	}

	config := &store.CacheConfig{
		Type:    store.CacheType(settings.Type),
		Options: options,
	}

	switch config.Type {
	case store.CacheTypeMemory:
		config.Memory = &store.MemoryCacheConfig{MaxSize: options.MaxSize}
	case store.CacheTypeNATS:
		config.NATS = &store.NATSKVConfig{
			URL:    settings.NATSURL,
			Bucket: settings.Bucket,
			TTL:    options.TTL,
		}
	case store.CacheTypeNone:
	}

	return config, nil
}

// requireClient is a RunE helper for commands that need a wired
// client.
func requireClient(run func(cmd *cobra.Command, client *apiq.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := buildClient()
		if err != nil {
			return err
		}

		return run(cmd, client, args)
	}
}
