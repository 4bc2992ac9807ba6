// Package main is the entrypoint for the TenantPulse control CLI.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serverURL string
	var token string

	rootCmd := &cobra.Command{
		Use:   "tenantpulse-ctl",
		Short: "TenantPulse control CLI - tenant health scores and peer benchmarks",
		Long: `tenantpulse-ctl talks to a running TenantPulse server over its REST API.

Set the server with --server or the TENANTPULSE_SERVER environment variable,
and the API token with --token or TENANTPULSE_TOKEN.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "TenantPulse server URL (default: $TENANTPULSE_SERVER or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "API token (default: $TENANTPULSE_TOKEN)")

	client := func() (*apiClient, error) {
		return newAPIClient(serverURL, token)
	}

	rootCmd.AddCommand(
		newVersionCmd(client),
		newTenantsCmd(client),
		newScoreCmd(client),
		newAtRiskCmd(client),
		newUsageCmd(client),
		newBenchmarkCmd(client),
		newRecalculateCmd(client),
		newJobsCmd(client),
	)

	return rootCmd
}

// apiClient is a thin wrapper over the server's REST API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(serverURL, token string) (*apiClient, error) {
	if serverURL == "" {
		serverURL = os.Getenv("TENANTPULSE_SERVER")
	}
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("server URL must use http or https scheme")
	}

	if token == "" {
		token = os.Getenv("TENANTPULSE_TOKEN")
	}

	return &apiClient{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// do issues the request and decodes the JSON response into out. Non-2xx
// responses become errors carrying the server's error message.
func (c *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *apiClient) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *apiClient) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *apiClient) delete(path string, out any) error {
	return c.do(http.MethodDelete, path, nil, out)
}

type clientFunc func() (*apiClient, error)

func newVersionCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and server version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("tenantpulse-ctl %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)

			c, err := client()
			if err != nil {
				return err
			}

			var server struct {
				Version   string `json:"version"`
				Commit    string `json:"commit"`
				BuildDate string `json:"build_date"`
			}
			if err := c.get("/version", &server); err != nil {
				fmt.Printf("\nServer: unreachable (%v)\n", err)
				return nil
			}
			fmt.Printf("\nServer %s (%s, built %s)\n", server.Version, server.Commit, server.BuildDate)
			return nil
		},
	}
}

type scoreResponse struct {
	TenantID     string `json:"tenant_id"`
	OverallScore int    `json:"overall_score"`
	Trend        string `json:"trend"`
	RiskLevel    string `json:"risk_level"`
	CalculatedAt string `json:"calculated_at"`

	LoginScore          int `json:"login_score"`
	CaseResolutionScore int `json:"case_resolution_score"`
	CampaignScore       int `json:"campaign_score"`
	FeatureScore        int `json:"feature_score"`
	TicketScore         int `json:"ticket_score"`
}

func newScoreCmd(client clientFunc) *cobra.Command {
	var history bool
	var days int

	cmd := &cobra.Command{
		Use:   "score <tenant-id>",
		Short: "Show a tenant's latest health score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			if history {
				var resp struct {
					Scores []scoreResponse `json:"scores"`
				}
				path := fmt.Sprintf("/api/v1/tenants/%s/score/history?days=%d", args[0], days)
				if err := c.get(path, &resp); err != nil {
					return err
				}

				if len(resp.Scores) == 0 {
					fmt.Println("No score history for this tenant.")
					return nil
				}

				fmt.Printf("%-25s %-7s %-10s %-8s\n", "CALCULATED", "SCORE", "TREND", "RISK")
				fmt.Println(strings.Repeat("-", 54))
				for _, s := range resp.Scores {
					fmt.Printf("%-25s %-7d %-10s %-8s\n", s.CalculatedAt, s.OverallScore, s.Trend, s.RiskLevel)
				}
				return nil
			}

			var s scoreResponse
			if err := c.get("/api/v1/tenants/"+args[0]+"/score", &s); err != nil {
				return err
			}

			fmt.Printf("Tenant:     %s\n", s.TenantID)
			fmt.Printf("Score:      %d\n", s.OverallScore)
			fmt.Printf("Trend:      %s\n", s.Trend)
			fmt.Printf("Risk:       %s\n", s.RiskLevel)
			fmt.Printf("Calculated: %s\n", s.CalculatedAt)
			fmt.Println()
			fmt.Printf("Components:\n")
			fmt.Printf("  Login activity:   %d\n", s.LoginScore)
			fmt.Printf("  Case resolution:  %d\n", s.CaseResolutionScore)
			fmt.Printf("  Campaigns:        %d\n", s.CampaignScore)
			fmt.Printf("  Feature adoption: %d\n", s.FeatureScore)
			fmt.Printf("  Support tickets:  %d\n", s.TicketScore)
			return nil
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "Show score history instead of the latest score")
	cmd.Flags().IntVar(&days, "days", 90, "Days of history to show (with --history)")

	return cmd
}

func newTenantsCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List active tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			var resp struct {
				Tenants []struct {
					ID             string  `json:"id"`
					Name           string  `json:"name"`
					IndustrySector *string `json:"industry_sector"`
					EmployeeCount  *int    `json:"employee_count"`
				} `json:"tenants"`
			}
			if err := c.get("/api/v1/tenants", &resp); err != nil {
				return err
			}

			if len(resp.Tenants) == 0 {
				fmt.Println("No active tenants.")
				return nil
			}

			fmt.Printf("%-38s %-28s %-18s %-10s\n", "ID", "NAME", "SECTOR", "EMPLOYEES")
			fmt.Println(strings.Repeat("-", 96))
			for _, t := range resp.Tenants {
				sector := "-"
				if t.IndustrySector != nil {
					sector = *t.IndustrySector
				}
				employees := "-"
				if t.EmployeeCount != nil {
					employees = fmt.Sprint(*t.EmployeeCount)
				}
				fmt.Printf("%-38s %-28s %-18s %-10s\n", t.ID, t.Name, sector, employees)
			}
			return nil
		},
	}
}

func newAtRiskCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "at-risk",
		Short: "List tenants at MEDIUM or HIGH risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			var resp struct {
				Tenants []struct {
					TenantID   string `json:"tenant_id"`
					TenantName string `json:"tenant_name"`
					Score      int    `json:"overall_score"`
					Trend      string `json:"trend"`
					RiskLevel  string `json:"risk_level"`
				} `json:"tenants"`
			}
			if err := c.get("/api/v1/tenants/at-risk", &resp); err != nil {
				return err
			}

			if len(resp.Tenants) == 0 {
				fmt.Println("No tenants at risk.")
				return nil
			}

			fmt.Printf("%-38s %-24s %-7s %-10s %-8s\n", "TENANT", "NAME", "SCORE", "TREND", "RISK")
			fmt.Println(strings.Repeat("-", 92))
			for _, t := range resp.Tenants {
				fmt.Printf("%-38s %-24s %-7d %-10s %-8s\n", t.TenantID, t.TenantName, t.Score, t.Trend, t.RiskLevel)
			}
			return nil
		},
	}
}

func newUsageCmd(client clientFunc) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "usage <tenant-id>",
		Short: "Show a tenant's daily usage snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			var resp struct {
				Snapshots []struct {
					SnapshotDate string  `json:"snapshot_date"`
					ActiveUsers  int     `json:"active_users"`
					TotalUsers   int     `json:"total_users"`
					LoginRate    float64 `json:"login_rate"`
					CasesClosed  int     `json:"cases_closed"`
				} `json:"snapshots"`
			}
			path := fmt.Sprintf("/api/v1/tenants/%s/usage?days=%d", args[0], days)
			if err := c.get(path, &resp); err != nil {
				return err
			}

			if len(resp.Snapshots) == 0 {
				fmt.Println("No usage snapshots for this tenant.")
				return nil
			}

			fmt.Printf("%-12s %-8s %-8s %-12s %-8s\n", "DATE", "ACTIVE", "TOTAL", "LOGIN RATE", "CLOSED")
			fmt.Println(strings.Repeat("-", 52))
			for _, s := range resp.Snapshots {
				fmt.Printf("%-12s %-8d %-8d %-12.1f %-8d\n", s.SnapshotDate, s.ActiveUsers, s.TotalUsers, s.LoginRate, s.CasesClosed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Days of snapshots to show")

	return cmd
}

func newBenchmarkCmd(client clientFunc) *cobra.Command {
	var metric string
	var sector string
	var employeeMin, employeeMax int

	cmd := &cobra.Command{
		Use:   "benchmark <tenant-id>",
		Short: "Compare a tenant against its peer cohort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("metric", metric)
			if sector != "" {
				q.Set("industry_sector", sector)
			}
			if cmd.Flags().Changed("employee-min") {
				q.Set("employee_min", fmt.Sprint(employeeMin))
			}
			if cmd.Flags().Changed("employee-max") {
				q.Set("employee_max", fmt.Sprint(employeeMax))
			}

			var resp struct {
				Metric       string  `json:"metric"`
				Cohort       string  `json:"cohort"`
				TenantValue  float64 `json:"tenant_value"`
				Percentile   int     `json:"percentile"`
				PeerCount    int     `json:"peer_count"`
				PeerP25      float64 `json:"peer_p25"`
				PeerMedian   float64 `json:"peer_median"`
				PeerP75      float64 `json:"peer_p75"`
				CalculatedOn string  `json:"calculated_on"`
			}
			path := "/api/v1/tenants/" + args[0] + "/benchmark?" + q.Encode()
			if err := c.get(path, &resp); err != nil {
				return err
			}

			fmt.Printf("Metric:      %s\n", resp.Metric)
			fmt.Printf("Cohort:      %s\n", resp.Cohort)
			fmt.Printf("Your value:  %.1f\n", resp.TenantValue)
			fmt.Printf("Percentile:  %d\n", resp.Percentile)
			fmt.Printf("Peers:       %d\n", resp.PeerCount)
			fmt.Printf("Peer P25:    %.1f\n", resp.PeerP25)
			fmt.Printf("Peer median: %.1f\n", resp.PeerMedian)
			fmt.Printf("Peer P75:    %.1f\n", resp.PeerP75)
			fmt.Printf("As of:       %s\n", resp.CalculatedOn)
			return nil
		},
	}

	cmd.Flags().StringVar(&metric, "metric", "", "Benchmark metric (required), e.g. login_rate")
	cmd.Flags().StringVar(&sector, "sector", "", "Industry sector cohort filter")
	cmd.Flags().IntVar(&employeeMin, "employee-min", 0, "Employee bucket lower bound")
	cmd.Flags().IntVar(&employeeMax, "employee-max", 0, "Employee bucket upper bound")
	_ = cmd.MarkFlagRequired("metric")

	return cmd
}

func newRecalculateCmd(client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Enqueue recalculation jobs",
	}

	var noCollect bool
	tenantCmd := &cobra.Command{
		Use:   "tenant <tenant-id>",
		Short: "Recalculate one tenant's health score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			var resp struct {
				JobID string `json:"job_id"`
			}
			body := map[string]bool{"collect": !noCollect}
			if err := c.post("/api/v1/tenants/"+args[0]+"/score/recalculate", body, &resp); err != nil {
				return err
			}
			fmt.Printf("Job enqueued: %s\n", resp.JobID)
			fmt.Println("Run 'tenantpulse-ctl jobs get " + resp.JobID + "' to check progress.")
			return nil
		},
	}
	tenantCmd.Flags().BoolVar(&noCollect, "no-collect", false, "Score from existing snapshots without collecting fresh usage data")

	allCmd := &cobra.Command{
		Use:   "all",
		Short: "Recalculate scores for every active tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			var resp struct {
				JobID string `json:"job_id"`
			}
			if err := c.post("/api/v1/scores/recalculate", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Batch job enqueued: %s\n", resp.JobID)
			return nil
		},
	}

	benchmarksCmd := &cobra.Command{
		Use:   "benchmarks",
		Short: "Rebuild the peer benchmark aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			var resp struct {
				JobID string `json:"job_id"`
			}
			if err := c.post("/api/v1/benchmarks/recalculate", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Benchmark job enqueued: %s\n", resp.JobID)
			return nil
		},
	}

	cmd.AddCommand(tenantCmd, allCmd, benchmarksCmd)
	return cmd
}

type jobResponse struct {
	ID           string `json:"id"`
	JobType      string `json:"job_type"`
	Status       string `json:"status"`
	Priority     int    `json:"priority"`
	Progress     int    `json:"progress"`
	RetryCount   int    `json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

func newJobsCmd(client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and control the background job queue",
	}

	var status, jobType string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if jobType != "" {
				q.Set("type", jobType)
			}
			q.Set("limit", fmt.Sprint(limit))

			var resp struct {
				Jobs []jobResponse `json:"jobs"`
			}
			if err := c.get("/api/v1/jobs?"+q.Encode(), &resp); err != nil {
				return err
			}

			if len(resp.Jobs) == 0 {
				fmt.Println("No jobs found.")
				return nil
			}

			fmt.Printf("%-38s %-20s %-12s %-9s %-7s\n", "ID", "TYPE", "STATUS", "PROGRESS", "RETRIES")
			fmt.Println(strings.Repeat("-", 90))
			for _, j := range resp.Jobs {
				fmt.Printf("%-38s %-20s %-12s %-9d %-7d\n", j.ID, j.JobType, j.Status, j.Progress, j.RetryCount)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, completed, failed, dead_letter)")
	listCmd.Flags().StringVar(&jobType, "type", "", "Filter by job type")
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum jobs to list")

	getCmd := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			var j jobResponse
			if err := c.get("/api/v1/jobs/"+args[0], &j); err != nil {
				return err
			}

			fmt.Printf("Job:       %s\n", j.ID)
			fmt.Printf("Type:      %s\n", j.JobType)
			fmt.Printf("Status:    %s\n", j.Status)
			fmt.Printf("Progress:  %d%%\n", j.Progress)
			fmt.Printf("Retries:   %d\n", j.RetryCount)
			fmt.Printf("Created:   %s\n", j.CreatedAt)
			if j.CompletedAt != "" {
				fmt.Printf("Completed: %s\n", j.CompletedAt)
			}
			if j.ErrorMessage != "" {
				fmt.Printf("Error:     %s\n", j.ErrorMessage)
			}
			return nil
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			var resp struct {
				TotalPending    int            `json:"total_pending"`
				TotalRunning    int            `json:"total_running"`
				TotalCompleted  int            `json:"total_completed"`
				TotalFailed     int            `json:"total_failed"`
				TotalDeadLetter int            `json:"total_dead_letter"`
				ByType          map[string]int `json:"by_type"`
			}
			if err := c.get("/api/v1/jobs/summary", &resp); err != nil {
				return err
			}

			fmt.Printf("Pending:     %d\n", resp.TotalPending)
			fmt.Printf("Running:     %d\n", resp.TotalRunning)
			fmt.Printf("Completed:   %d\n", resp.TotalCompleted)
			fmt.Printf("Failed:      %d\n", resp.TotalFailed)
			fmt.Printf("Dead letter: %d\n", resp.TotalDeadLetter)
			if len(resp.ByType) > 0 {
				fmt.Println("\nPending by type:")
				for t, n := range resp.ByType {
					fmt.Printf("  %-20s %d\n", t, n)
				}
			}
			return nil
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			if err := c.delete("/api/v1/jobs/"+args[0], nil); err != nil {
				return err
			}
			fmt.Println("Job cancelled.")
			return nil
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Requeue a failed or dead-letter job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}

			if err := c.post("/api/v1/jobs/"+args[0]+"/retry", nil, nil); err != nil {
				return err
			}
			fmt.Println("Job requeued.")
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, summaryCmd, cancelCmd, retryCmd)
	return cmd
}
