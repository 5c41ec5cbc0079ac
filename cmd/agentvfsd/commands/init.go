package commands

import (
	"fmt"
	"os"

	"github.com/agentvfs/core/internal/cli/prompt"
	"github.com/agentvfs/core/pkg/config"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize an agentvfsd configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/agentvfs/config.yaml with in-memory backends suitable for
local development. Use --interactive to choose a zone name, mount point,
and storage backend via prompts.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "prompt for zone/mount/backend instead of using defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.GetDefaultConfig()

	if initInteractive {
		if err := runInitWizard(cfg); err != nil {
			if prompt.IsAborted(err) {
				return fmt.Errorf("init aborted")
			}
			return err
		}
	}

	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the daemon with: agentvfsd start")
	return nil
}

func runInitWizard(cfg *config.Config) error {
	zoneID, err := prompt.Input("Zone ID", cfg.Zones[0].ID)
	if err != nil {
		return err
	}
	cfg.Zones[0].ID = zoneID
	cfg.Zones[0].Name = zoneID

	mountPoint, err := prompt.Input("Root mount point", cfg.Mounts[0].Path)
	if err != nil {
		return err
	}
	cfg.Mounts[0].Path = mountPoint

	backend, err := prompt.SelectString("Metadata store backend", []string{"memory", "badger", "postgres", "sqlite"})
	if err != nil {
		return err
	}
	cfg.MetadataStore.Type = backend

	blobBackend, err := prompt.SelectString("Blob store backend", []string{"memory", "fs", "s3"})
	if err != nil {
		return err
	}
	cfg.BlobStore.Type = blobBackend

	return nil
}
