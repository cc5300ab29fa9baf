package config

import "time"

const (
	defaultCacheRoot  = ".litebuilder/cache"
	defaultOutputDir  = "./site"
	defaultArtifact   = ".litebuilder/artifacts"
	defaultBranch     = "main"
	defaultDebounce   = 30 * time.Second
	defaultMetricAddr = ":9321"
)

// applyDefaults fills zero-valued fields with sensible defaults.
// Validation runs after defaults, so anything required stays required.
func (c *Config) applyDefaults() {
	if c.Project.Branch == "" {
		c.Project.Branch = defaultBranch
	}
	if len(c.Project.ContentPaths) == 0 {
		c.Project.ContentPaths = []string{"docs"}
	}
	if c.Project.ReadmePath == "" {
		c.Project.ReadmePath = "README.md"
	}
	if c.Interp.Binary == "" {
		c.Interp.Binary = "python3"
	}
	if c.Toolchain.CacheRoot == "" {
		c.Toolchain.CacheRoot = defaultCacheRoot
	}
	if c.Toolchain.BuildCmd == "" {
		c.Toolchain.BuildCmd = "make"
	}
	if c.Toolchain.DistDir == "" {
		c.Toolchain.DistDir = "dist"
	}
	if c.Site.Title == "" {
		c.Site.Title = "Notebook Demo Site"
	}
	if c.Site.OutputDir == "" {
		c.Site.OutputDir = defaultOutputDir
	}
	if c.Artifact.Dir == "" {
		c.Artifact.Dir = defaultArtifact
	}
	if c.Deploy.Branch == "" {
		c.Deploy.Branch = defaultBranch
	}
	if c.Deploy.Event == "" {
		c.Deploy.Event = "push"
	}
	if c.Schedule.Debounce == "" {
		c.Schedule.Debounce = defaultDebounce.String()
	}
	if c.Monitoring.MetricsAddr == "" {
		c.Monitoring.MetricsAddr = defaultMetricAddr
	}
	if c.Monitoring.NATSSubject == "" {
		c.Monitoring.NATSSubject = "litebuilder.runs"
	}
	if c.Monitoring.HistoryDB == "" {
		c.Monitoring.HistoryDB = ".litebuilder/events.db"
	}
	c.Retry.applyDefaults()
}

// DebounceDuration returns the parsed schedule debounce, falling back to the default.
func (s ScheduleConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(s.Debounce)
	if err != nil || d <= 0 {
		return defaultDebounce
	}
	return d
}
