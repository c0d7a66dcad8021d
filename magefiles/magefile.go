//go:build mage

// Package main provides build targets for the lineage project using Mage.
//
// Usage:
//
//	mage build     Compile the lineage binary to bin/
//	mage test      Run all tests
//	mage testRace  Run all tests with the race detector
//	mage lint      Run golangci-lint
//	mage clean     Remove build artifacts
//	mage install   Install lineage to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/sh"
)

const (
	binaryName = "lineage"
	binaryDir  = "bin"
	cmdDir     = "./cmd/lineage"
)

// Build compiles the lineage binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestRace runs all tests with the race detector enabled.
func TestRace() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}

// Install installs the lineage binary to GOPATH/bin.
func Install() error {
	return sh.RunV("go", "install", cmdDir)
}
