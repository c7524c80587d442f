//go:build mage

// Package main contains Mage build targets for paper-triage developer tooling.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"go.yaml.in/yaml/v3"
)

const (
	binDir     = "bin"
	binName    = "paper-triage"
	cmdPkg     = "./cmd/paper-triage"
	dataDir    = "data"
	configFile = "paper-triage.yaml"
)

// starterConfig is written by Init when no config file exists.
var starterConfig = map[string]any{
	"store":     map[string]any{"driver": "sqlite", "path": filepath.Join(dataDir, "papers.db")},
	"logging":   map[string]any{"level": "info", "format": "console"},
	"retention": map[string]any{"enabled": true, "days": 14},
	"notify":    map[string]any{"enabled": false, "channel": ""},
}

// Init creates the data directory and a starter config file.
func Init() error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}
	fmt.Println("  ", dataDir)

	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("   %s exists, leaving it alone\n", configFile)
		return nil
	}
	data, err := yaml.Marshal(starterConfig)
	if err != nil {
		return fmt.Errorf("encoding starter config: %w", err)
	}
	if err := os.WriteFile(configFile, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", configFile, err)
	}
	fmt.Println("  ", configFile)
	fmt.Println("Project initialized.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Run builds the CLI and runs the pipeline for one submission date.
func Run(date string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "run", "--date", date)
}

// RunIDs builds the CLI and runs the pipeline for the ids listed in file.
func RunIDs(file string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "run", "--ids", file)
}

// Stats prints Go production and test line counts.
func Stats() error {
	prod, test := 0, 0
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return err
		}
		if strings.HasSuffix(path, "_test.go") {
			test += n
		} else {
			prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", test)
	return nil
}

// countLines counts non-blank lines in path.
func countLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}
