package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "settlectl",
	Short: "Operator CLI for the settlement core",
	Long: `settlectl drives the settlement-core admin API: inspect the escrow and
verification mirrors, manage reconciliation jobs, and govern the verifier
allow-list.`,
	SilenceUsage: true,
}

func main() {
	viper.SetEnvPrefix("SETTLECTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("addr", "http://localhost:8081", "admin API base URL")
	rootCmd.PersistentFlags().String("token", "", "admin API bearer token")
	rootCmd.PersistentFlags().Bool("json", false, "print raw JSON instead of tables")
	_ = viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.AddCommand(escrowCmd())
	rootCmd.AddCommand(verificationCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(verifierCmd())
	rootCmd.AddCommand(driverCmd())
	rootCmd.AddCommand(outboxCmd())
	rootCmd.AddCommand(costCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newClient() *apiClient {
	return &apiClient{
		base:  strings.TrimRight(viper.GetString("addr"), "/"),
		token: viper.GetString("token"),
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type escrowRow struct {
	EscrowID       int64  `json:"escrow_id"`
	RideID         string `json:"ride_id"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	DriverShare    int64  `json:"driver_share"`
	PlatformFee    int64  `json:"platform_fee"`
	PassengerShare int64  `json:"passenger_share"`
	UpdatedAt      string `json:"updated_at"`
}

func escrowCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "escrow", Short: "Inspect the escrow mirror"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List mirrored escrows",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []escrowRow
			path := fmt.Sprintf("/admin/v1/escrows?limit=%d", limit)
			if status != "" {
				path += "&status=" + status
			}
			if err := newClient().do(http.MethodGet, path, nil, &rows); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(rows)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Escrow", "Ride", "Amount", "Status", "Driver", "Fee", "Passenger", "Updated"})
			for _, r := range rows {
				tw.AppendRow(table.Row{r.EscrowID, r.RideID, r.Amount, r.Status, r.DriverShare, r.PlatformFee, r.PassengerShare, r.UpdatedAt})
			}
			tw.Render()
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter (active/released/refunded/disputed)")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	get := &cobra.Command{
		Use:   "get <ride-id>",
		Short: "Show one escrow by ride id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := newClient().do(http.MethodGet, "/admin/v1/escrows/"+args[0], nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

type verificationRow struct {
	DriverID        string `json:"driver_id"`
	DriverAddress   string `json:"driver_address"`
	Status          string `json:"status"`
	ExpiresAt       string `json:"expires_at"`
	ReputationScore int    `json:"reputation_score"`
	VerifiedNow     bool   `json:"verified_now"`
}

func verificationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "verification", Short: "Inspect the driver verification mirror"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List driver verifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []verificationRow
			path := fmt.Sprintf("/admin/v1/verifications?limit=%d", limit)
			if status != "" {
				path += "&status=" + status
			}
			if err := newClient().do(http.MethodGet, path, nil, &rows); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(rows)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Driver", "Address", "Status", "Expires", "Score", "Valid Now"})
			for _, r := range rows {
				tw.AppendRow(table.Row{r.DriverID, r.DriverAddress, r.Status, r.ExpiresAt, r.ReputationScore, r.VerifiedNow})
			}
			tw.Render()
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter (pending/verified/rejected/suspended)")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	get := &cobra.Command{
		Use:   "get <driver-id>",
		Short: "Show one verification by driver id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := newClient().do(http.MethodGet, "/admin/v1/verifications/"+args[0], nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

type jobRow struct {
	ID             string `json:"id"`
	IdempotencyKey string `json:"idempotency_key"`
	Transition     string `json:"transition"`
	State          string `json:"state"`
	AttemptCount   int    `json:"attempt_count"`
	LastError      string `json:"last_error"`
	CreatedAt      string `json:"created_at"`
}

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "job", Short: "Manage reconciliation jobs"}

	var state string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs by state (default failed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []jobRow
			path := fmt.Sprintf("/admin/v1/jobs?limit=%d", limit)
			if state != "" {
				path += "&state=" + state
			}
			if err := newClient().do(http.MethodGet, path, nil, &rows); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(rows)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Key", "Transition", "State", "Attempts", "Last Error"})
			for _, r := range rows {
				lastErr := r.LastError
				if len(lastErr) > 60 {
					lastErr = lastErr[:60] + "…"
				}
				tw.AppendRow(table.Row{r.ID, r.IdempotencyKey, r.Transition, r.State, r.AttemptCount, lastErr})
			}
			tw.Render()
			return nil
		},
	}
	list.Flags().StringVar(&state, "state", "", "state filter (pending/submitted/confirmed/failed/cancelled)")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	get := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := newClient().do(http.MethodGet, "/admin/v1/jobs/"+args[0], nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job that has not been submitted yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().do(http.MethodPost, "/admin/v1/jobs/"+args[0]+"/cancel", struct{}{}, nil); err != nil {
				return err
			}
			fmt.Println("cancelled")
			return nil
		},
	}

	retry := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Clone a failed job into a fresh pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]string
			if err := newClient().do(http.MethodPost, "/admin/v1/jobs/"+args[0]+"/retry", struct{}{}, &out); err != nil {
				return err
			}
			fmt.Println("new job:", out["job_id"])
			return nil
		},
	}

	var olderThanHours int
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete confirmed jobs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]int64
			body := map[string]int{"older_than_hours": olderThanHours}
			if err := newClient().do(http.MethodPost, "/admin/v1/jobs/purge", body, &out); err != nil {
				return err
			}
			fmt.Println("purged:", out["purged"])
			return nil
		},
	}
	purge.Flags().IntVar(&olderThanHours, "older-than-hours", 720, "minimum confirmed age in hours (>= 24)")

	cmd.AddCommand(list, get, cancel, retry, purge)
	return cmd
}

func verifierCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "verifier", Short: "Govern the verifier allow-list"}

	var name string
	add := &cobra.Command{
		Use:   "add <address>",
		Short: "Authorize a verifier on the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"address": args[0], "name": name}
			var out map[string]any
			if err := newClient().do(http.MethodPost, "/admin/v1/verifiers", body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")

	remove := &cobra.Command{
		Use:   "remove <address>",
		Short: "Revoke a verifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := newClient().do(http.MethodDelete, "/admin/v1/verifiers/"+args[0], nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func driverCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "driver", Short: "Driver verification lifecycle actions"}

	var verifier, reason string
	suspend := &cobra.Command{
		Use:   "suspend <driver-id>",
		Short: "Suspend a verified driver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"verifier": verifier, "reason": reason}
			var out map[string]any
			if err := newClient().do(http.MethodPost, "/admin/v1/drivers/"+args[0]+"/suspend", body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	suspend.Flags().StringVar(&verifier, "verifier", "", "acting verifier address (required)")
	suspend.Flags().StringVar(&reason, "reason", "", "suspension reason (required)")
	_ = suspend.MarkFlagRequired("verifier")
	_ = suspend.MarkFlagRequired("reason")

	var renewVerifier string
	renew := &cobra.Command{
		Use:   "renew <driver-id>",
		Short: "Renew a driver's verification validity window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"verifier": renewVerifier}
			var out map[string]any
			if err := newClient().do(http.MethodPost, "/admin/v1/drivers/"+args[0]+"/renew", body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	renew.Flags().StringVar(&renewVerifier, "verifier", "", "acting verifier address (required)")
	_ = renew.MarkFlagRequired("verifier")

	var scoreVerifier string
	var score int
	scoreCmd := &cobra.Command{
		Use:   "score <driver-id>",
		Short: "Set a driver's reputation score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"verifier": scoreVerifier, "score": score}
			var out map[string]any
			if err := newClient().do(http.MethodPost, "/admin/v1/drivers/"+args[0]+"/score", body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	scoreCmd.Flags().StringVar(&scoreVerifier, "verifier", "", "acting verifier address (required)")
	scoreCmd.Flags().IntVar(&score, "score", 0, "new reputation score [0, 1000]")
	_ = scoreCmd.MarkFlagRequired("verifier")

	cmd.AddCommand(suspend, renew, scoreCmd)
	return cmd
}

func outboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outbox",
		Short: "Show unpublished outbound event count",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]int
			if err := newClient().do(http.MethodGet, "/admin/v1/outbox", nil, &out); err != nil {
				return err
			}
			fmt.Println("pending:", out["pending"])
			return nil
		},
	}
}

func costCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cost <transition>",
		Short: "Estimate the ledger cost of a transition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := newClient().do(http.MethodGet, "/admin/v1/cost?transition="+args[0], nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check admin API health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]string
			if err := newClient().do(http.MethodGet, "/admin/v1/health", nil, &out); err != nil {
				return err
			}
			fmt.Println(out["status"])
			return nil
		},
	}
}
