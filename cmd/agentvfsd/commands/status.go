package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentvfs/core/internal/cli/health"
	"github.com/agentvfs/core/internal/cli/output"
	"github.com/agentvfs/core/internal/cli/timeutil"
)

var (
	statusOutput string
	statusAddr   string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check a running agentvfsd server's health endpoint",
	Long: `status calls a running server's /health endpoint and reports
whether it is reachable, its reported uptime, and since when it has been
running. This build runs in the foreground only, so "running" here means
"the health endpoint answered", not a PID-file check.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8080", "admin API base address")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "output format (table|json|yaml)")
}

// ServerStatus is the CLI-facing status summary, separate from the wire
// health.Response, since a status check may fail to reach the server at
// all.
type ServerStatus struct {
	Reachable bool   `json:"reachable" yaml:"reachable"`
	Message   string `json:"message" yaml:"message"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{Message: "server is not reachable"}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(statusAddr + "/health")
	if err == nil {
		defer func() { _ = resp.Body.Close() }()
		var healthResp health.Response
		if err := json.NewDecoder(resp.Body).Decode(&healthResp); err == nil {
			status.Reachable = healthResp.Status == "ok"
			status.StartedAt = healthResp.Data.StartedAt
			status.Uptime = healthResp.Data.Uptime
			if status.Reachable {
				status.Message = "server is running"
			} else {
				status.Message = fmt.Sprintf("server reported an unhealthy status: %s", healthResp.Error)
			}
		} else {
			status.Message = "server responded but the health payload was invalid"
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}
	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("agentvfsd Server Status")
	fmt.Println("=======================")
	fmt.Println()

	if status.Reachable {
		fmt.Printf("  Status:   \033[32m● Running\033[0m\n")
		if status.StartedAt != "" {
			fmt.Printf("  Started:  %s\n", timeutil.FormatTime(status.StartedAt))
		}
		if status.Uptime != "" {
			fmt.Printf("  Uptime:   %s\n", timeutil.FormatUptime(status.Uptime))
		}
	} else {
		fmt.Printf("  Status:   \033[31m○ Unreachable\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
