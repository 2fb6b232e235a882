// Command ragctl administers a tenantrag deployment: schema migration,
// tenant and user provisioning, and bulk document indexing.
package main

import (
	"fmt"
	"os"

	"tenantrag/cmd/ragctl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
