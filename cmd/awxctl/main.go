// awxctl is a command-line client for AWX and Ansible Automation
// Platform controllers: resource CRUD, job launch, and monitoring.
package main

import (
	"fmt"
	"os"

	"github.com/rflorenc/awxctl/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := cli.NewRootCmd(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
