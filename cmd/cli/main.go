package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hamed0406/sitepulse/internal/domain"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var apiBase, apiKey string
	api := func() *client { return newClient(apiBase, apiKey) }

	root := &cobra.Command{
		Use:           "sitepulse",
		Short:         "Manage monitored endpoints on a sitepulse API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVar(&apiBase, "api", envOr("API_BASE", "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&apiKey, "key", os.Getenv("SITEPULSE_API_KEY"), "API key (admin key for add/check)")

	root.AddCommand(
		newAddCmd(api),
		newListCmd(api),
		newCheckCmd(api),
		newStateCmd(api),
		newDiagnoseCmd(api),
	)
	return root
}

func newAddCmd(api func() *client) *cobra.Command {
	var name, workspace string
	var paused bool
	cmd := &cobra.Command{
		Use:   "add [url]",
		Short: "Add an endpoint and run a first check",
		Long: `Add an endpoint to monitor. Without an argument the URL is read from stdin.

Examples:
  sitepulse add https://shop.example --name Shop --workspace acme
  sitepulse add blog.example --paused`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			} else {
				fmt.Fprint(cmd.OutOrStdout(), "Enter a site URL to monitor (e.g., https://example.com): ")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				raw = line
			}
			raw = strings.TrimSpace(raw)
			if raw == "" {
				return fmt.Errorf("url is required")
			}
			if !strings.Contains(raw, "://") {
				raw = "https://" + raw
			}

			var resp struct {
				Endpoint   domain.Endpoint     `json:"endpoint"`
				Result     *domain.CheckResult `json:"result"`
				CheckError string              `json:"check_error"`
			}
			body := map[string]any{"url": raw, "name": name, "workspace_id": workspace, "paused": paused}
			if err := api().do(cmd.Context(), http.MethodPost, "/api/endpoints", body, &resp); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Added %s (%s)\n", resp.Endpoint.URL, resp.Endpoint.ID)
			switch {
			case resp.Result != nil:
				printRecord(w, resp.Result.Record)
			case resp.CheckError != "":
				fmt.Fprintf(w, "First check failed: %s\n", resp.CheckError)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id")
	cmd.Flags().BoolVar(&paused, "paused", false, "add without scheduling checks")
	return cmd
}

func newListCmd(api func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var eps []domain.Endpoint
			if err := api().do(cmd.Context(), http.MethodGet, "/api/endpoints", nil, &eps); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tURL\tWORKSPACE\tACTIVE")
			for _, e := range eps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", e.ID, e.DisplayName(), e.URL, e.WorkspaceID, e.Active)
			}
			return tw.Flush()
		},
	}
}

func newCheckCmd(api func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "check <id>",
		Short: "Run a check now and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res domain.CheckResult
			if err := api().do(cmd.Context(), http.MethodPost, "/api/endpoints/"+args[0]+"/check", nil, &res); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printRecord(w, res.Record)
			fmt.Fprintf(w, "Attempts: %d\n", res.Attempts)
			if res.Alert != "" && res.Alert != domain.AlertNone {
				fmt.Fprintf(w, "Alert: %s\n", res.Alert)
			}
			return nil
		},
	}
}

func newStateCmd(api func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "state <id>",
		Short: "Show cached runtime state of an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st domain.RuntimeState
			if err := api().do(cmd.Context(), http.MethodGet, "/api/endpoints/"+args[0]+"/state", nil, &st); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Status: %s\n", orNA(string(st.LastStatus)))
			fmt.Fprintf(w, "Uptime: %.2f%%\n", st.UptimePercent)
			fmt.Fprintf(w, "Slow: %t\n", st.IsSlow)
			fmt.Fprintf(w, "Consecutive failures: %d\n", st.ConsecutiveFailures)
			if st.ConfirmedDownAt != nil {
				fmt.Fprintf(w, "Down since: %s\n", st.ConfirmedDownAt.Format("2006-01-02 15:04:05Z07:00"))
			}
			return nil
		},
	}
}

func newDiagnoseCmd(api func() *client) *cobra.Command {
	var errMsg string
	var status int
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Explain an error message or HTTP status in plain words",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Diagnosis string `json:"diagnosis"`
			}
			if err := api().do(cmd.Context(), http.MethodGet, diagnosisPath(errMsg, status), nil, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Diagnosis)
			return nil
		},
	}
	cmd.Flags().StringVar(&errMsg, "error", "", "error message from a failed check")
	cmd.Flags().IntVar(&status, "status", 0, "HTTP status code")
	return cmd
}

func printRecord(w io.Writer, r domain.CheckRecord) {
	code := "n/a"
	if r.StatusCode != nil {
		code = fmt.Sprint(*r.StatusCode)
	}
	latency := "n/a"
	if r.ResponseTimeMS != nil {
		latency = fmt.Sprintf("%d ms", *r.ResponseTimeMS)
	}
	fmt.Fprintf(w, "Status: %s  HTTP: %s  Latency: %s", r.Status, code, latency)
	if r.IsSlow {
		fmt.Fprint(w, "  (slow)")
	}
	fmt.Fprintln(w)
	if r.Error != nil {
		fmt.Fprintf(w, "Error: %s\n", *r.Error)
	}
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

