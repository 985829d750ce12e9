package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigFile is the config file name looked up in the working directory.
const DefaultConfigFile = ".onionharvester.yaml"

// FindConfigFile searches for the configuration file in the following order:
//  1. explicitPath, which must exist when given
//  2. $ONION_HARVESTER_CONFIG
//  3. .onionharvester.yaml in the current directory
//  4. config.yaml in the xdg config directory
//
// An empty path with a nil error means no file was found.
func FindConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicitPath)
			}
			return "", err
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(configPathEnv); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s (from %s)", ErrConfigNotFound, envPath, configPathEnv)
		}
		return envPath, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	candidate := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	return "", nil
}
