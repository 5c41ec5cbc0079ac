package commands

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"

	"github.com/agentvfs/core/internal/cli/output"
	"github.com/agentvfs/core/pkg/config"
	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/tuple"
	"github.com/agentvfs/core/pkg/server"
)

var (
	rebacZone string

	tupleObjectType  string
	tupleObjectID    string
	tupleRelation    string
	tupleSubjectType string
	tupleSubjectID   string
	tupleSubjectRel  string

	checkPermission string
)

var rebacCmd = &cobra.Command{
	Use:   "rebac",
	Short: "Inspect and mutate the relationship-tuple store directly against the configured metadata store",
	Long: `rebac connects directly to the configured MetadataStore (no running
daemon required), mirroring "agentvfsd mount": it builds the same
zone-scoped Engine the admin API uses and drives it in-process.`,
}

var rebacCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a permission check",
	RunE:  runRebacCheck,
}

var rebacWriteTupleCmd = &cobra.Command{
	Use:   "write-tuple",
	Short: "Write a relationship tuple",
	RunE:  runRebacWriteTuple,
}

var rebacListTuplesCmd = &cobra.Command{
	Use:   "list-tuples",
	Short: "List relationship tuples for an object",
	RunE:  runRebacListTuples,
}

func init() {
	rebacCmd.PersistentFlags().StringVar(&rebacZone, "zone", "default", "zone ID")

	for _, c := range []*cobra.Command{rebacCheckCmd, rebacWriteTupleCmd, rebacListTuplesCmd} {
		c.Flags().StringVar(&tupleObjectType, "object-type", "", "object type (required)")
		c.Flags().StringVar(&tupleObjectID, "object-id", "", "object ID (required)")
		c.Flags().StringVar(&tupleSubjectType, "subject-type", "user", "subject type")
		c.Flags().StringVar(&tupleSubjectID, "subject-id", "", "subject ID")
		c.Flags().StringVar(&tupleSubjectRel, "subject-relation", "", "subject relation, for userset subjects (group:eng#member)")
	}
	rebacCheckCmd.Flags().StringVar(&checkPermission, "permission", "", "permission/relation to check (required)")
	rebacWriteTupleCmd.Flags().StringVar(&tupleRelation, "relation", "", "relation to grant (required)")
	rebacListTuplesCmd.Flags().StringVar(&tupleRelation, "relation", "", "narrow to this relation (optional)")

	rebacCmd.AddCommand(rebacCheckCmd, rebacWriteTupleCmd, rebacListTuplesCmd)
}

// rebacEngine loads the configured stack in-process and returns the
// Engine for rebacZone, following mount.go's direct-metadatastore pattern.
func rebacEngine(cmd *cobra.Command) (*check.Engine, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	srv, err := server.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build server: %w", err)
	}
	z, ok := srv.Zones[rebacZone]
	if !ok {
		return nil, fmt.Errorf("unknown zone %q", rebacZone)
	}
	return z.Engine, nil
}

// decodeSubject uses mapstructure (per the CLI tuple-literal decoding the
// config layer already relies on) to assemble a tuple.Subject from the
// loosely-typed flag values, rather than hand-rolling field assignment.
func decodeSubject(zone string) (tuple.Subject, error) {
	raw := map[string]any{
		"Type":     tupleSubjectType,
		"ID":       tupleSubjectID,
		"Relation": tupleSubjectRel,
		"Zone":     zone,
	}
	var subj tuple.Subject
	if err := mapstructure.Decode(raw, &subj); err != nil {
		return tuple.Subject{}, fmt.Errorf("invalid subject literal: %w", err)
	}
	return subj, nil
}

func runRebacCheck(cmd *cobra.Command, args []string) error {
	if tupleObjectType == "" || tupleObjectID == "" || checkPermission == "" {
		return fmt.Errorf("--object-type, --object-id, and --permission are required")
	}
	engine, err := rebacEngine(cmd)
	if err != nil {
		return err
	}
	subj, err := decodeSubject(rebacZone)
	if err != nil {
		return err
	}

	decision, err := engine.Check(cmd.Context(), check.Request{
		Subject:    subj,
		Permission: checkPermission,
		Object:     tuple.Object{Type: tupleObjectType, ID: tupleObjectID, Zone: rebacZone},
		Zone:       rebacZone,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "allow=%t reason=%q at_revision=%d depth=%d\n",
		decision.Allow, decision.Reason, decision.AtRevision, decision.TraversalDepth)
	return nil
}

func runRebacWriteTuple(cmd *cobra.Command, args []string) error {
	if tupleObjectType == "" || tupleObjectID == "" || tupleRelation == "" || tupleSubjectID == "" {
		return fmt.Errorf("--object-type, --object-id, --relation, and --subject-id are required")
	}
	engine, err := rebacEngine(cmd)
	if err != nil {
		return err
	}
	subj, err := decodeSubject(rebacZone)
	if err != nil {
		return err
	}

	rev, err := engine.WriteTuple(cmd.Context(), tuple.Tuple{
		Subject:  subj,
		Relation: tupleRelation,
		Object:   tuple.Object{Type: tupleObjectType, ID: tupleObjectID, Zone: rebacZone},
		Zone:     rebacZone,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revision=%d\n", rev)
	return nil
}

// rebacTupleTable renders tuples in the order z.Tuples.List returned them —
// key order off the underlying prefix scan, the committed ordering for
// "rebac list-tuples" (see DESIGN.md).
type rebacTupleTable []tuple.Tuple

func (rebacTupleTable) Headers() []string {
	return []string{"SUBJECT", "RELATION", "OBJECT", "REVISION"}
}

func (t rebacTupleTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, tp := range t {
		subj := fmt.Sprintf("%s:%s", tp.Subject.Type, tp.Subject.ID)
		if tp.Subject.Relation != "" {
			subj += "#" + tp.Subject.Relation
		}
		obj := fmt.Sprintf("%s:%s", tp.Object.Type, tp.Object.ID)
		rows = append(rows, []string{subj, tp.Relation, obj, fmt.Sprintf("%d", tp.Revision)})
	}
	return rows
}

func runRebacListTuples(cmd *cobra.Command, args []string) error {
	if tupleObjectType == "" || tupleObjectID == "" {
		return fmt.Errorf("--object-type and --object-id are required")
	}
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	srv, err := server.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	z, ok := srv.Zones[rebacZone]
	if !ok {
		return fmt.Errorf("unknown zone %q", rebacZone)
	}

	filter := tuple.Filter{Zone: rebacZone, ObjectType: tupleObjectType, ObjectID: tupleObjectID, Relation: tupleRelation}
	batch, _, err := z.Tuples.List(cmd.Context(), filter, "", 500)
	if err != nil {
		return err
	}

	return output.PrintTable(cmd.OutOrStdout(), rebacTupleTable(batch))
}
