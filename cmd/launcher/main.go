// Package main is the entry point for the m3u8-mcp launcher.
//
// Run with no arguments, the launcher checks for a Python interpreter,
// installs requirements.txt with pip, creates the ts_files and output
// directories and then starts mcp_server.py with the launcher's own stdin,
// stdout and stderr, so an MCP client that spawned the launcher talks to the
// Python server directly.
package main

func main() {
	Execute()
}
