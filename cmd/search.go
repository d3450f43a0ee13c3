package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/listingloom/internal/search"
)

var (
	searchProvider string
	searchModel    string
	searchUser     string
	searchLimits   bool
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Ask a question about the imported listings",
	Example: `  listingloom search "2 bed condos in the West Loop with exposed brick"
  listingloom search --provider anthropic "quiet garden units near Lincoln Park"
  listingloom search --json "parking included"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		svc, model, err := buildSearch(cfg, st, searchOptions{
			Provider: searchProvider,
			Model:    searchModel,
			NoLimits: !searchLimits,
		})
		if err != nil {
			return err
		}

		resp, err := svc.Run(ctx, search.Request{
			Query:  strings.Join(args, " "),
			UserID: searchUser,
			IP:     "127.0.0.1",
		})
		if err != nil {
			return err
		}
		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(resp)
		}
		fmt.Println(resp.HTML)
		fmt.Fprintf(os.Stderr, "\n%s · %d listings in context · %d tokens", model, resp.Matches, resp.TokensUsed)
		if resp.RemainingDaily >= 0 {
			fmt.Fprintf(os.Stderr, " · %d searches left today", resp.RemainingDaily)
		}
		fmt.Fprintln(os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchProvider, "provider", "", "LLM provider: openrouter, anthropic or ollama (default from config)")
	searchCmd.Flags().StringVar(&searchModel, "model", "", "model name (default from config)")
	searchCmd.Flags().StringVar(&searchUser, "user", "", "user id to charge when --limits is set")
	searchCmd.Flags().BoolVar(&searchLimits, "limits", false, "apply the daily and monthly usage limits")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the response as JSON")
}
