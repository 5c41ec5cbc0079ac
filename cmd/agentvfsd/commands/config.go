package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentvfs/core/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

var schemaOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate agentvfsd configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the agentvfsd configuration file: checks YAML
syntax, required fields, and cross-field invariants (e.g. a postgres
metadata store requires metadata_store.postgres).`,
	RunE: runConfigValidate,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate a JSON Schema for the configuration file",
	Long: `Generate a JSON Schema document for Config, suitable for IDE
autocompletion or external validation tooling.`,
	RunE: runConfigSchema,
}

func init() {
	configSchemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "output file (default: stdout)")
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSchemaCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	displayPath := GetConfigFile()
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Metadata store: %s\n", cfg.MetadataStore.Type)
	fmt.Printf("  Blob store:     %s\n", cfg.BlobStore.Type)
	fmt.Printf("  Log level:      %s\n", cfg.Logging.Level)
	fmt.Printf("  Zones:          %d\n", len(cfg.Zones))
	fmt.Printf("  Mounts:         %d\n", len(cfg.Mounts))
	return nil
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "agentvfsd Configuration"
	schema.Description = "Configuration schema for the agentvfsd daemon"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if schemaOutput != "" {
		if err := os.WriteFile(schemaOutput, schemaJSON, 0644); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		fmt.Printf("JSON schema written to %s\n", schemaOutput)
		return nil
	}

	fmt.Println(string(schemaJSON))
	return nil
}
