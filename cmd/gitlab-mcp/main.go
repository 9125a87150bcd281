package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "auth":
		if len(os.Args) < 3 {
			printAuthUsage()
			return
		}
		switch os.Args[2] {
		case "login":
			cmdAuthLogin(os.Args[3:])
		case "logout":
			cmdAuthLogout(os.Args[3:])
		case "status":
			cmdAuthStatus(os.Args[3:])
		case "help", "-h", "--help":
			printAuthUsage()
		default:
			printAuthUsage()
			os.Exit(1)
		}
	case "paths":
		cmdPaths(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("gitlab-mcp version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`gitlab-mcp - MCP server with browser sign-in for GitLab

Usage:
  gitlab-mcp <command> [options]

Commands:
  serve          Start the MCP server and the local auth server
  auth login     Sign in through the browser and store the token
  auth logout    Remove the stored token
  auth status    Show the stored token and whether it is still valid
  paths          Show config and credential file paths
  version        Show version
  help           Show this help

Run 'gitlab-mcp <command> --help' for more information on a command.
`)
}

func printAuthUsage() {
	fmt.Print(`gitlab-mcp auth - Manage the stored GitLab token

Usage:
  gitlab-mcp auth <subcommand> [options]

Subcommands:
  login [--path=<file>]
      Open the sign-in page and wait for the callback.
      --path is the file the success page reopens in the editor.

  logout
      Remove the stored token.

  status [--offline]
      Show the stored token (redacted), its claims if it is a JWT, and
      whether the auth service still accepts it.
      --offline skips the remote check.

Examples:
  gitlab-mcp auth login
  gitlab-mcp auth status --offline
`)
}
