package datadir

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvFileEnvVar names a single .env file to load instead of the default
// locations.
const EnvFileEnvVar = "ORBIT_ENV_FILE"

// LoadEnv loads KEY=VALUE pairs from the data root's .env, the working
// directory's .env, and a .env in each extra dir, in that order. The first
// file to define a key wins, and variables already present in the real
// environment are never overridden. When ORBIT_ENV_FILE is set, that file
// is the only one consulted.
func LoadEnv(dataRoot string, dirs ...string) error {
	loaded := make(map[string]bool)
	for _, path := range envCandidates(dataRoot, dirs) {
		if err := applyEnvFile(path, loaded); err != nil {
			return fmt.Errorf("datadir: load %s: %w", path, err)
		}
	}
	return nil
}

// FindEnvFiles reports which candidate .env files exist, in load order.
func FindEnvFiles(dataRoot string, dirs ...string) []string {
	var found []string
	for _, path := range envCandidates(dataRoot, dirs) {
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}
	return found
}

func envCandidates(dataRoot string, dirs []string) []string {
	if override := os.Getenv(EnvFileEnvVar); override != "" {
		return []string{override}
	}

	roots := make([]string, 0, len(dirs)+2)
	roots = append(roots, dataRoot)
	if cwd, err := os.Getwd(); err == nil {
		roots = append(roots, cwd)
	}
	roots = append(roots, dirs...)

	seen := make(map[string]bool, len(roots))
	var paths []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		path := filepath.Join(root, ".env")
		clean := filepath.Clean(path)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		paths = append(paths, path)
	}
	return paths
}

// applyEnvFile sets the variables one file defines. A key already claimed
// by an earlier file or by the environment is skipped. A missing file is
// not an error.
func applyEnvFile(path string, loaded map[string]bool) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if loaded[key] {
			continue
		}
		loaded[key] = true
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, unquote(strings.TrimSpace(value)))
	}
	return sc.Err()
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
