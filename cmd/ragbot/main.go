// cmd/ragbot/main.go
package main

import (
	"os"

	cmd "github.com/mwiater/ragbot/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
	exit           = os.Exit
)

// main hands control to the cobra root command and exits with its status.
func main() {
	setVersionInfo(version, commit, date)
	exit(executeCmd())
}
