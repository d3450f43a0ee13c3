package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/listingloom/internal/ai"
	"github.com/KaramelBytes/listingloom/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or update the model catalog and pricing",
	Example: `  listingloom models list
  listingloom models list --json
  listingloom models sync --file ./models.json --merge
  listingloom models fetch --provider anthropic --output models.json`,
}

var modelsJSON bool

var modelsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"show"},
	Short:   "List known models with context size and pricing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		names := ai.CatalogNames()
		if modelsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cat)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tCONTEXT\tIN $/1K\tOUT $/1K")
		for _, name := range names {
			m := cat[name]
			fmt.Fprintf(tw, "%s\t%d\t%.5f\t%.5f\n", name, m.ContextTokens, m.InputPerK, m.OutputPerK)
		}
		fmt.Fprintf(tw, "\nProviders: %s\n", strings.Join(ai.Providers(), ", "))
		return tw.Flush()
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return err
		}
		applyCatalog(m, syncMerge)
		return nil
	},
}

func applyCatalog(m map[string]ai.ModelInfo, merge bool) {
	if merge {
		ai.MergeCatalog(m)
		fmt.Printf("Merged %d models into the catalog\n", len(m))
		return
	}
	ai.OverrideCatalog(m)
	fmt.Printf("Replaced the catalog with %d models\n", len(m))
}

// providerURL returns a catalog URL configured for a provider through
// LISTINGLOOM_<PROVIDER>_CATALOG_URL.
func providerURL(name string) string {
	return os.Getenv("LISTINGLOOM_" + strings.ToUpper(name) + "_CATALOG_URL")
}

var (
	fetchURL      string
	fetchOutput   string
	fetchMerge    bool
	fetchProvider string
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL, or apply a built-in provider preset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if fetchURL == "" && fetchProvider != "" {
			fetchURL = providerURL(fetchProvider)
		}
		var m map[string]ai.ModelInfo
		switch {
		case fetchURL != "":
			fetched, err := fetchCatalog(fetchURL)
			if err != nil {
				return err
			}
			m = fetched
		case fetchProvider != "":
			preset, ok := ai.PresetCatalog(normalizeProvider(fetchProvider))
			if !ok {
				return fmt.Errorf("no preset for provider %q (try %s)", fetchProvider, strings.Join(ai.Providers(), ", "))
			}
			m = preset
		default:
			return fmt.Errorf("--url is required (or specify --provider with a known preset)")
		}

		if fetchOutput != "" {
			data, err := utils.PrettyJSON(m)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(fetchOutput, data); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Printf("Saved catalog to %s\n", fetchOutput)
		}
		applyCatalog(m, fetchMerge)
		return nil
	},
}

func fetchCatalog(url string) (map[string]ai.ModelInfo, error) {
	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fetch: unexpected status %s: %s", resp.Status, string(b))
	}
	var m map[string]ai.ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return m, nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsListCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")

	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "optional path to save the fetched JSON")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", false, "merge into existing catalog instead of replacing")
	modelsFetchCmd.Flags().StringVar(&fetchProvider, "provider", "", "provider preset (openrouter, anthropic, ollama) or catalog URL env override")
}
