// Package main is the single-binary entrypoint for Sunflower: the CLI and
// the engagement service in one.
package main

import "github.com/sunflower-app/sunflower/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
