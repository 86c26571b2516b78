package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"builddesk/internal/analyzer"
	"builddesk/internal/domain"
	"builddesk/internal/report"
)

var (
	triageTicketID int64
	triageSubject  string
	triageEmail    string
	jsonOutput     bool
	draftModel     string
	reportHistory  int
	reportOutDir   string
)

var triageCmd = &cobra.Command{
	Use:   "triage [ticket text...]",
	Short: "Classify a stored ticket (--id) or free text",
	Example: `  builddesk triage --id 42
  builddesk triage --subject "Export broken" "Payroll export fails with error 500 since Monday"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		body := strings.TrimSpace(strings.Join(args, " "))
		if triageTicketID == 0 && body == "" && strings.TrimSpace(triageSubject) == "" {
			return fmt.Errorf("pass --id or the ticket text")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var rep analyzer.TriageReport
		if triageTicketID > 0 {
			rep, err = a.Analyzer.AnalyzeTicket(cmd.Context(), triageTicketID)
		} else {
			rep, err = a.Analyzer.AnalyzeText(cmd.Context(), triageSubject, body, triageEmail)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rep)
		}
		printTriage(cmd.OutOrStdout(), rep)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health <project-id>",
	Short: "Score a project and store the snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.Health.ScoreProject(cmd.Context(), id, time.Now().In(a.Config.Location))
		if err != nil {
			printUndefined(cmd.ErrOrStderr(), rep.Undefined)
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rep)
		}
		printHealth(cmd.OutOrStdout(), rep)
		return nil
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft <topic...>",
	Short: "Generate and store a blog/help-center draft",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := strings.TrimSpace(strings.Join(args, " "))
		if topic == "" {
			return fmt.Errorf("topic is required")
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		draft := a.LLM.GenerateDraft(cmd.Context(), topic, draftModel).Draft()
		id, err := a.Store.SaveDraft(cmd.Context(), *draft)
		if err != nil {
			return err
		}
		draft.ID = id
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), draft)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Draft #%d (%s, %d min read", draft.ID, draft.Model, draft.ReadTimeMinutes)
		if draft.Fallback {
			fmt.Fprint(out, ", template fallback")
		}
		fmt.Fprintf(out, ")\n\n%s\n", draft.Body)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Export a project's health history as markdown and XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		if reportHistory < 1 {
			return fmt.Errorf("--history must be at least 1")
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		project, err := a.Store.GetProject(cmd.Context(), id)
		if err != nil {
			return err
		}
		history, err := a.Store.SnapshotHistory(cmd.Context(), id, reportHistory)
		if err != nil {
			return err
		}
		outDir := reportOutDir
		if outDir == "" {
			outDir = a.Config.ReportOutputDir
		}
		if err := ensureDir(outDir); err != nil {
			return err
		}
		files, err := report.Export(outDir, project, history, time.Now().In(a.Config.Location))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nWrote %s\n", files.Markdown, files.XLSX)
		return nil
	},
}

func init() {
	triageCmd.Flags().Int64Var(&triageTicketID, "id", 0, "stored ticket id to analyze and persist")
	triageCmd.Flags().StringVar(&triageSubject, "subject", "", "ticket subject for free-text triage")
	triageCmd.Flags().StringVar(&triageEmail, "email", "", "reporter email for account context")
	draftCmd.Flags().StringVar(&draftModel, "model", "", "model override (default llm_content_model)")
	reportCmd.Flags().IntVar(&reportHistory, "history", 12, "number of snapshots to include")
	reportCmd.Flags().StringVar(&reportOutDir, "out", "", "output directory (default report_output_dir)")
	for _, c := range []*cobra.Command{triageCmd, healthCmd, draftCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
	}
}

func parseProjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: project id must be a positive integer, got %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTriage(w io.Writer, r analyzer.TriageReport) {
	c := r.Classification
	fmt.Fprintf(w, "Category:   %s (confidence %.2f, %s)\n", c.Category, c.Confidence, r.Source)
	fmt.Fprintf(w, "Priority:   %s\n", c.Priority)
	fmt.Fprintf(w, "Sentiment:  %s\n", c.Sentiment)
	fmt.Fprintf(w, "Complexity: %s\n", c.Complexity)
	if len(c.ExtractedInfo) > 0 {
		keys := make([]string, 0, len(c.ExtractedInfo))
		for k := range c.ExtractedInfo {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, strings.Join(c.ExtractedInfo[k], ", "))
		}
	}
	if r.Account.Known {
		fmt.Fprintf(w, "Reporter:   %s (%s, %s plan)\n", r.Account.Contact.FullName, r.Account.Contact.CompanyName, r.Account.Contact.Plan)
	}
	for _, a := range r.Articles {
		fmt.Fprintf(w, "Article:    %s %s (%.3f)\n", a.Title, a.URL, a.Score)
	}
	for _, s := range r.Suggestions {
		if s.Type == domain.SuggestionAutoResponse {
			fmt.Fprintf(w, "\nSuggested response:\n%s\n", s.ResponseText)
		}
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func printHealth(w io.Writer, r analyzer.HealthReport) {
	fmt.Fprintf(w, "%s: %.1f (%s)\n", r.Project.Name, r.Aggregate.OverallScore, r.Aggregate.OverallStatus)
	for _, d := range r.Aggregate.Dimensions {
		fmt.Fprintf(w, "  %-9s %5.1f  %-9s %-6s %s\n", d.Name, d.Score, d.Status, d.Trend, d.Details)
	}
	printUndefined(w, r.Undefined)
}

func printUndefined(w io.Writer, undefined map[domain.Dimension]string) {
	for _, d := range domain.Dimensions {
		if reason, ok := undefined[d]; ok {
			fmt.Fprintf(w, "  %-9s not scored: %s\n", d, reason)
		}
	}
}
