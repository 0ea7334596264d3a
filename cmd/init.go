package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fernwoodlabs/fw-backup/pkg/buildinfo"
	"github.com/fernwoodlabs/fw-backup/pkg/config"
	"github.com/fernwoodlabs/fw-backup/pkg/flagparse"
	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// RunInit handles the logic for the 'init' command. It writes a configuration
// file seeded from an existing one (if present) merged with the given flags.
func RunInit(ctx context.Context, flagMap map[string]any) error {
	configPath, _ := flagMap["config"].(string)
	if configPath == "" {
		configPath = config.ConfigFileName
	}
	absConfigPath, err := util.ExpandedAbsPath(configPath)
	if err != nil {
		return fmt.Errorf("config path invalid: %w", err)
	}

	force := false
	if f, ok := flagMap["force"]; ok {
		force = f.(bool)
	}

	// Try to load an existing config to preserve settings. config.Load
	// returns the defaults if the file simply doesn't exist.
	baseConfig, err := config.Load(absConfigPath)
	if err != nil {
		plog.Warn("Could not load existing configuration, starting with defaults.", "reason", err)
		baseConfig = config.NewDefault()
	}

	// An existing file is only overwritten after confirmation, unless forced.
	if _, statErr := os.Stat(absConfigPath); statErr == nil && !force {
		fmt.Printf("WARNING: Configuration file already exists at %s.\n", absConfigPath)
		if !PromptForConfirmation("Overwrite it with the merged settings?", false) {
			plog.Info(buildinfo.Name + " init operation canceled.")
			return nil
		}
	}

	// Create a config from base merged with user flags.
	runConfig := config.MergeConfigWithFlags(flagparse.Init, baseConfig, flagMap)

	// Source and destination must be known before the file is useful.
	if runConfig.SourceFolder == "" {
		return fmt.Errorf("the -source flag is required for the init operation (unless updating an existing config)")
	}
	if runConfig.DestinationFolder == "" {
		return fmt.Errorf("the -target flag is required for the init operation (unless updating an existing config)")
	}

	// CRITICAL: Validate the config before persisting it. The source does not
	// need to exist yet; the backup run checks that.
	if err := runConfig.Validate(false); err != nil {
		return err
	}

	if err := config.Save(absConfigPath, runConfig); err != nil {
		return err
	}

	plog.Info(buildinfo.Name+" configuration initialized", "path", absConfigPath)
	return nil
}

// PromptForConfirmation asks the user a yes/no question on stdout/stdin.
func PromptForConfirmation(prompt string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", prompt, suffix)

	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultYes
	}
	return response == "y" || response == "yes"
}
