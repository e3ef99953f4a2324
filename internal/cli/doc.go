// Package cli implements the command-line interface for labordata.
//
// The cli package provides the Cobra-based CLI with commands for running a
// harvest, listing configured sources, running on a cron schedule, and
// printing the version. It coordinates the config, harvest, and notify
// packages and renders run reports as text or JSON.
package cli
