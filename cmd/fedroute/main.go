// Command fedroute resolves S-100 service requests across a federation of nodes.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/s100fed/fedroute/internal/cli"
	"github.com/s100fed/fedroute/pkg/version"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

func run() error {
	return cli.NewRootCmd(version.GetVersion()).Execute()
}

// exitCode maps a command error to the process exit code. Failed routing decisions
// exit with cli.ExitCodeRouteFailed so scripts can tell them apart from usage errors.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var routeErr *cli.RouteFailedError
	if errors.As(err, &routeErr) {
		return cli.ExitCodeRouteFailed
	}
	return 1
}
