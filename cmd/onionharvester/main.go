// Package main provides the entry point for the onion harvester CLI.
//
// The harvester watches a public paste site, extracts Tor onion service
// addresses from new pastes and keeps them in a deduplicated dataset.
//
// Usage:
//
//	onionharvester run
//	onionharvester run --once
//	onionharvester harvest <paste-key>
//	onionharvester stats
//
// See --help for all available options.
package main

func main() {
	Execute()
}
