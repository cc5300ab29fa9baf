package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for errors a run would otherwise hit mid-pipeline.
func (c *Config) Validate() error {
	if err := c.validateProject(); err != nil {
		return err
	}
	if err := c.validateToolchain(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateDeploy(); err != nil {
		return err
	}
	return c.validateSchedule()
}

func (c *Config) validateProject() error {
	if c.Project.URL == "" {
		return errors.New("project url is required")
	}
	if c.Project.Name == "" {
		return errors.New("project name is required")
	}
	if c.Project.Auth != nil {
		switch c.Project.Auth.Type {
		case "token":
			if c.Project.Auth.Token == "" {
				return fmt.Errorf("project %s: token auth requires a token", c.Project.Name)
			}
		case "basic":
			if c.Project.Auth.Username == "" || c.Project.Auth.Password == "" {
				return fmt.Errorf("project %s: basic auth requires username and password", c.Project.Name)
			}
		case "ssh":
			if c.Project.Auth.KeyPath == "" {
				return fmt.Errorf("project %s: ssh auth requires key_path", c.Project.Name)
			}
		default:
			return fmt.Errorf("project %s: unknown auth type %q", c.Project.Name, c.Project.Auth.Type)
		}
	}
	return nil
}

func (c *Config) validateToolchain() error {
	if c.Toolchain.URL == "" {
		return errors.New("toolchain url is required")
	}
	if c.Toolchain.Tag == "" {
		return errors.New("toolchain tag is required (the toolchain checkout must be pinned)")
	}
	if c.Toolchain.CacheKey == "" {
		return errors.New("toolchain cache_key is required")
	}
	if strings.ContainsAny(c.Toolchain.CacheKey, "/\\ ") {
		return fmt.Errorf("toolchain cache_key %q must not contain path separators or spaces", c.Toolchain.CacheKey)
	}
	return nil
}

func (c *Config) validateTools() error {
	seen := make(map[string]bool, len(c.Tools))
	for _, tool := range c.Tools {
		if tool.Name == "" {
			return errors.New("tool name cannot be empty")
		}
		if tool.Version == "" {
			return fmt.Errorf("tool %s: version pin is required", tool.Name)
		}
		if seen[tool.Name] {
			return fmt.Errorf("duplicate tool: %s", tool.Name)
		}
		seen[tool.Name] = true
	}
	return nil
}

func (c *Config) validateDeploy() error {
	if c.Deploy.ObjectStore == nil && c.Deploy.LocalDir == "" {
		// Publish stage is a no-op without a target; that is allowed
		// (build-only configurations), so nothing to check.
		return nil
	}
	if os := c.Deploy.ObjectStore; os != nil {
		if os.Endpoint == "" {
			return errors.New("deploy object_store endpoint is required")
		}
		if strings.Contains(os.Endpoint, "://") {
			return fmt.Errorf("deploy object_store endpoint must not include scheme: %q", os.Endpoint)
		}
		if os.Bucket == "" {
			return errors.New("deploy object_store bucket is required")
		}
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.Cron == "" {
		return nil
	}
	fields := strings.Fields(c.Schedule.Cron)
	if len(fields) != 5 && len(fields) != 6 {
		return fmt.Errorf("schedule cron %q must have 5 or 6 fields", c.Schedule.Cron)
	}
	return nil
}
