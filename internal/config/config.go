package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Project    ProjectConfig    `yaml:"project"`
	Interp     InterpConfig     `yaml:"interpreter"`
	Tools      []ToolConfig     `yaml:"tools,omitempty"`
	Toolchain  ToolchainConfig  `yaml:"toolchain"`
	Site       SiteConfig       `yaml:"site"`
	Artifact   ArtifactConfig   `yaml:"artifact"`
	Deploy     DeployConfig     `yaml:"deploy"`
	Retry      RetryConfig      `yaml:"retry,omitempty"`
	Schedule   ScheduleConfig   `yaml:"schedule,omitempty"`
	Monitoring MonitoringConfig `yaml:"monitoring,omitempty"`
}

// ProjectConfig describes the source repository whose notebook site is built.
type ProjectConfig struct {
	URL          string      `yaml:"url"`
	Name         string      `yaml:"name"`
	Branch       string      `yaml:"branch,omitempty"`
	Auth         *AuthConfig `yaml:"auth,omitempty"`
	ContentPaths []string    `yaml:"content_paths,omitempty"` // notebook content inside the repo
	ReadmePath   string      `yaml:"readme_path,omitempty"`   // landing page source
}

// AuthConfig represents repository authentication configuration.
type AuthConfig struct {
	Type     string `yaml:"type"` // "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// InterpConfig pins the interpreter the external build tools run under.
type InterpConfig struct {
	Binary  string `yaml:"binary,omitempty"`
	Version string `yaml:"version"` // pinned, e.g. "3.11"
}

// ToolConfig pins one external packaging/build tool.
type ToolConfig struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"` // pinned, e.g. "0.4.5"
	Extra   []string `yaml:"extra,omitempty"`
}

// ToolchainConfig describes the cached runtime toolchain checkout and its build.
type ToolchainConfig struct {
	URL       string   `yaml:"url"`
	Tag       string   `yaml:"tag"`       // pinned release tag
	CacheKey  string   `yaml:"cache_key"` // fixed identifier for the persisted directory
	CacheRoot string   `yaml:"cache_root,omitempty"`
	BuildCmd  string   `yaml:"build_cmd,omitempty"`
	BuildArgs []string `yaml:"build_args,omitempty"`
	DistDir   string   `yaml:"dist_dir,omitempty"` // build output, relative to the checkout
}

// SiteConfig describes the generated notebook site.
type SiteConfig struct {
	Title       string   `yaml:"title"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	OutputDir   string   `yaml:"output_dir,omitempty"`
	AssembleCmd string   `yaml:"assemble_cmd,omitempty"`
	AssembleArg []string `yaml:"assemble_args,omitempty"`
	Contents    []string `yaml:"contents,omitempty"` // extra content dirs copied into the site
}

// ArtifactConfig configures the local artifact store.
type ArtifactConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	Compress bool   `yaml:"compress"`
	Keep     int    `yaml:"keep,omitempty"` // artifacts retained by prune, 0 = unlimited
}

// DeployConfig gates and targets the publish stage.
type DeployConfig struct {
	Branch      string             `yaml:"branch,omitempty"` // publish only on push to this branch
	Event       string             `yaml:"event,omitempty"`  // publish only for this event type
	ObjectStore *ObjectStoreConfig `yaml:"object_store,omitempty"`
	LocalDir    string             `yaml:"local_dir,omitempty"`
}

// ObjectStoreConfig targets an S3-compatible static hosting bucket.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ScheduleConfig configures daemon-mode periodic runs.
type ScheduleConfig struct {
	Cron     string `yaml:"cron,omitempty"`
	Debounce string `yaml:"debounce,omitempty"`
}

// MonitoringConfig configures the daemon observability surfaces.
type MonitoringConfig struct {
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	NATSURL     string `yaml:"nats_url,omitempty"`
	NATSSubject string `yaml:"nats_subject,omitempty"`
	HistoryDB   string `yaml:"history_db,omitempty"` // sqlite run-event log, empty disables it
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env first so ${VAR} expansion below can see it.
	_ = godotenv.Load(".env", ".env.local")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Project: ProjectConfig{
			URL:          "https://github.com/example/compiler.git",
			Name:         "compiler",
			Branch:       "main",
			ContentPaths: []string{"docs/notebooks"},
			ReadmePath:   "README.md",
		},
		Interp: InterpConfig{Binary: "python3", Version: "3.11"},
		Tools: []ToolConfig{
			{Name: "notebook-packager", Version: "0.4.5"},
			{Name: "runtime-build", Version: "0.29.3"},
		},
		Toolchain: ToolchainConfig{
			URL:      "https://github.com/example/runtime-forge.git",
			Tag:      "v0.29.3",
			CacheKey: "runtime-forge-v1",
			BuildCmd: "make",
			DistDir:  "dist",
		},
		Site: SiteConfig{
			Title:       "Interactive Notebook Demo",
			BaseURL:     "https://example.github.io/compiler",
			AssembleCmd: "notebook-packager",
		},
		Artifact: ArtifactConfig{Compress: true, Keep: 5},
		Deploy: DeployConfig{
			Branch: "main",
			Event:  "push",
			ObjectStore: &ObjectStoreConfig{
				Endpoint:  "localhost:9000",
				Bucket:    "sites",
				AccessKey: "${LITEBUILDER_ACCESS_KEY}",
				SecretKey: "${LITEBUILDER_SECRET_KEY}",
			},
		},
		Schedule: ScheduleConfig{Cron: "0 4 * * 6"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
