package commands

import (
	"fmt"

	"github.com/agentvfs/core/internal/cli/output"
	"github.com/agentvfs/core/pkg/config"
	"github.com/agentvfs/core/pkg/mount"
	"github.com/agentvfs/core/pkg/rebac/tuple"
	"github.com/agentvfs/core/pkg/server"
	"github.com/spf13/cobra"
)

var (
	mountZone        string
	mountSubjectType string
	mountSubjectID   string
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Inspect the mount table directly against the configured metadata store",
	Long: `mount connects directly to the configured MetadataStore (no running
daemon required) to inspect the mount table for one zone, the same
in-process way "agentvfsd rebac" operates against the store.`,
}

var mountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mounts visible to a subject",
	RunE:  runMountList,
}

func init() {
	mountCmd.PersistentFlags().StringVar(&mountZone, "zone", "default", "zone ID")
	mountListCmd.Flags().StringVar(&mountSubjectType, "subject-type", "user", "subject type")
	mountListCmd.Flags().StringVar(&mountSubjectID, "subject-id", "", "subject ID (required)")
	mountCmd.AddCommand(mountListCmd)
}

func runMountList(cmd *cobra.Command, args []string) error {
	if mountSubjectID == "" {
		return fmt.Errorf("--subject-id is required")
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	z, ok := srv.Zones[mountZone]
	if !ok {
		return fmt.Errorf("unknown zone %q", mountZone)
	}

	subj := tuple.Subject{Type: mountSubjectType, ID: mountSubjectID, Zone: mountZone}
	mounts, err := z.Facade.ListMounts(ctx, subj)
	if err != nil {
		return err
	}

	return output.PrintTable(cmd.OutOrStdout(), mountTable(mounts))
}

type mountTable []mount.Record

func (mountTable) Headers() []string { return []string{"MOUNT POINT", "BACKEND", "OBJECT TYPE", "READ ONLY"} }

func (t mountTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, m := range t {
		rows = append(rows, []string{m.MountPoint, m.BackendID, string(m.ObjectType), fmt.Sprintf("%t", m.Flags.ReadOnly)})
	}
	return rows
}
