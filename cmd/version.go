package cmd

import (
	"context"
	"fmt"

	"github.com/fernwoodlabs/fw-backup/pkg/buildinfo"
)

// RunVersion prints the application name and version.
func RunVersion(ctx context.Context, flagMap map[string]any) error {
	fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
	return nil
}
