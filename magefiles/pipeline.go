//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that drive the harvester against the configured
// volumes. Each target builds the binary first.
type Pipeline mg.Namespace

// Fetch downloads and unpacks the configured OA volumes.
func (Pipeline) Fetch() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "fetch", "--keep-archives")
}

// Parse writes the sidecar file for the configured volumes.
func (Pipeline) Parse() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "parse")
}

// Download fetches the media listed in the sidecar file.
func (Pipeline) Download() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "download")
}

// Run executes all stages and indexes the result in the catalog.
func (Pipeline) Run() error {
	mg.Deps(Build)
	if err := sh.RunV(bin(), "run", "--keep-archives"); err != nil {
		return err
	}
	return sh.RunV(bin(), "catalog", "index")
}
