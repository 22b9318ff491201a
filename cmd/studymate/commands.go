package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/studymate-app/studymate/internal/api"
	"github.com/studymate-app/studymate/internal/config"
	"github.com/studymate-app/studymate/internal/rag"
	"github.com/studymate-app/studymate/internal/storage"
)

func userQuery(cmd *cobra.Command) url.Values {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	q := url.Values{}
	q.Set("user_id", user)
	if session != "" {
		q.Set("session_id", session)
	}
	return q
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document (pdf, txt, md, html) into your study materials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		session, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		fields := map[string]string{"user_id": user}
		if session != "" {
			fields["session_id"] = session
		}

		printStep("Uploading %s", args[0])
		resp, err := client.upload(cmd.Context(), "/documents", args[0], fields)
		if err != nil {
			return err
		}

		var result rag.AddResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if !result.Success {
			printWarning("%s", result.Message)
			return nil
		}
		printSuccess("%s", result.Message)
		return nil
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question, answered from your documents when relevant",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		session, _ := cmd.Flags().GetString("session")
		mode, _ := cmd.Flags().GetString("mode")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"query":   strings.Join(args, " "),
			"user_id": user,
			"mode":    mode,
		}
		if session != "" {
			req["session_id"] = session
		}

		resp, err := client.post(cmd.Context(), "/chat", req)
		if err != nil {
			return err
		}

		var result api.ChatResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, result.Content)
		printStatus("Source", "%s", result.Source)
		printStatus("Session", "%s", result.SessionID)
		return nil
	},
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Show uploaded document statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents/stats?"+userQuery(cmd).Encode())
		if err != nil {
			return err
		}

		var stats rag.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Documents", "%d", stats.TotalDocuments)
		printStatus("Chunks", "%d", stats.TotalChunks)
		printStatus("Words", "%d", stats.TotalWords)
		if stats.LastUpdated != "" {
			printStatus("Last updated", "%s", stats.LastUpdated)
		}

		if len(stats.Documents) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tCHUNKS\tCHARS\tUPLOADED")
			for _, doc := range stats.Documents {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", doc.Filename, doc.ChunksCount, doc.TextLength, doc.UploadDate)
			}
			w.Flush()
		}
		return nil
	},
}

// --- clear ---

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all uploaded documents and their index",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/documents?"+userQuery(cmd).Encode())
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Documents cleared")
		return nil
	},
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List your study sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/sessions?"+userQuery(cmd).Encode())
		if err != nil {
			return err
		}

		var sessions []storage.Session
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}
		if len(sessions) == 0 {
			printStatus("Sessions", "none")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, title, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent questions and answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := userQuery(cmd)
		q.Set("limit", fmt.Sprintf("%d", limit))
		resp, err := client.get(cmd.Context(), "/interactions?"+q.Encode())
		if err != nil {
			return err
		}

		var interactions []storage.Interaction
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}
		if len(interactions) == 0 {
			printStatus("History", "empty")
			return nil
		}

		for _, in := range interactions {
			fmt.Fprintf(os.Stdout, "%s [%s/%s]\n", in.CreatedAt.Format("2006-01-02 15:04"), in.Mode, in.Source)
			fmt.Fprintf(os.Stdout, "  Q: %s\n", in.Query)
			answer := in.Response
			if len(answer) > 200 {
				answer = answer[:200] + "..."
			}
			fmt.Fprintf(os.Stdout, "  A: %s\n\n", answer)
		}
		return nil
	},
}

// --- analytics ---

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show usage analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/analytics?"+userQuery(cmd).Encode())
		if err != nil {
			return err
		}

		var a storage.Analytics
		if err := decodeJSON(resp, &a); err != nil {
			return err
		}

		printStatus("Interactions", "%d", a.TotalInteractions)
		printStatus("Avg response time", "%.2fs", a.AvgResponseTime)
		for mode, n := range a.ModeCounts {
			printStatus("Mode "+mode, "%d", n)
		}
		for source, n := range a.SourceCounts {
			printStatus("Source "+source, "%d", n)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, e := range config.Entries(cfg) {
			fmt.Fprintf(w, "%s\t%s\n", e.Key, e.Value)
		}
		return w.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Set %s", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{uploadCmd, askCmd, docsCmd, clearCmd, sessionsCmd, historyCmd, analyticsCmd} {
		c.Flags().String("user", "default", "user identifier")
		c.Flags().String("session", "", "session identifier (scopes document visibility)")
	}
	askCmd.Flags().String("mode", "chat", "answering mode: chat, tutor, notes, or quiz")
	historyCmd.Flags().Int("limit", 10, "number of interactions to show")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
