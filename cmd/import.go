package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/analysis"
	"github.com/KaramelBytes/listingloom/internal/importer"
	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/parser"
)

var (
	previewLimit   int
	previewProfile bool

	importBatchSize int
	importEdits     map[string]string
	importQuiet     bool

	syncDir   string
	syncPurge bool

	purgeYes bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Parse a CSV/TSV file and show the identifiers that would be imported",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := parser.ParseFile(args[0])
		if err != nil {
			return err
		}
		limit := previewLimit
		if limit <= 0 {
			limit = cfg.PreviewLimit
		}
		printPreview(os.Stdout, res, limit, cfg.BatchSize)
		if previewProfile {
			fmt.Println()
			fmt.Print(analysis.Profile(res).String())
		}
		return nil
	},
}

func printPreview(w io.Writer, res *parser.Result, limit, batchSize int) {
	fmt.Fprintf(w, "Columns: %s\n", strings.Join(res.Headers, ", "))
	fmt.Fprintf(w, "Rows: %d (skipped %d blank), batches of %d: %d\n\n",
		len(res.Rows), res.Skipped, batchSize, importer.BatchCount(len(res.Rows), batchSize))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tEXTERNAL ID\tROW")
	rows := res.Preview(limit)
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Index, r.ExternalID, truncate(rowSummary(r.Source), 60))
	}
	_ = tw.Flush()
	if len(rows) < len(res.Rows) {
		fmt.Fprintf(w, "... %d more rows not shown\n", len(res.Rows)-len(rows))
	}
}

func rowSummary(p model.Payload) string {
	vals := make([]string, 0, len(p))
	for _, f := range p {
		if v := strings.TrimSpace(f.Value); v != "" {
			vals = append(vals, v)
		}
	}
	return strings.Join(vals, " | ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a CSV/TSV file into the record store in batches",
	Example: `  listingloom import listings.csv
  listingloom import listings.csv --id 4=MLS12345 --id 9=MLS12346
  listingloom import listings.tsv --batch-size 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := parser.ParseFile(args[0])
		if err != nil {
			return err
		}
		edits, err := parseEdits(importEdits, len(res.Rows))
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		size := importBatchSize
		if size <= 0 {
			size = cfg.BatchSize
		}
		p, err := runImport(ctx, importer.New(st), importer.RowsFromPreview(res.Rows, edits), size, os.Stdout, importQuiet)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Imported %s: %d succeeded, %d failed\n", filepath.Base(args[0]), p.Succeeded, p.Failed)
		return nil
	},
}

// parseEdits turns "index=id" flag values into identifier edits.
func parseEdits(raw map[string]string, rows int) (map[int]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[int]string, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || idx < 0 || idx >= rows {
			return nil, fmt.Errorf("invalid --id %s=%s: row index must be between 0 and %d", k, v, rows-1)
		}
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("invalid --id %s: identifier is empty", k)
		}
		out[idx] = v
	}
	return out, nil
}

func runImport(ctx context.Context, im *importer.Importer, rows []importer.Row, batchSize int, w io.Writer, quiet bool) (importer.Progress, error) {
	return im.Run(ctx, rows, batchSize, func(b, batches int, results []importer.RowResult, p importer.Progress) {
		if quiet {
			return
		}
		fmt.Fprintf(w, "Batch %d/%d: %d processed, %d succeeded, %d failed\n", b+1, batches, p.Processed, p.Succeeded, p.Failed)
		for _, r := range results {
			if !r.Success {
				fmt.Fprintf(w, "  ✗ %s: %s\n", r.ExternalID, r.Message)
			}
		}
	})
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Re-import every CSV/TSV file in the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := syncDir
		if dir == "" {
			dir = cfg.DataDir
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read data dir: %w", err)
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && parser.Supported(e.Name()) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
		sort.Strings(files)
		if len(files) == 0 {
			fmt.Printf("No CSV/TSV files in %s\n", dir)
			return nil
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		im := importer.New(st)

		if syncPurge {
			n, err := im.DeleteAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d records\n", n)
		}

		var total importer.Progress
		for _, path := range files {
			res, err := parser.ParseFile(path)
			if err != nil {
				// one unreadable file does not stop the others
				zap.L().Warn("sync: skipping file", zap.String("path", path), zap.Error(err))
				fmt.Printf("⚠ Skipped %s: %v\n", filepath.Base(path), err)
				continue
			}
			p, err := runImport(ctx, im, importer.RowsFromPreview(res.Rows, nil), cfg.BatchSize, os.Stdout, true)
			if err != nil {
				return err
			}
			fmt.Printf("✓ %s: %d succeeded, %d failed\n", filepath.Base(path), p.Succeeded, p.Failed)
			total.Processed += p.Processed
			total.Succeeded += p.Succeeded
			total.Failed += p.Failed
		}
		fmt.Printf("Synced %d files: %d succeeded, %d failed\n", len(files), total.Succeeded, total.Failed)
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every imported record and clear the last sync time",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !purgeYes {
			return fmt.Errorf("refusing to delete all records without --yes")
		}
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := importer.New(st).DeleteAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Deleted %d records\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(purgeCmd)

	previewCmd.Flags().IntVar(&previewLimit, "limit", 0, "max rows to show (default from preview_limit)")
	previewCmd.Flags().BoolVar(&previewProfile, "profile", false, "also profile each column and flag identifier problems")

	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 0, "rows per batch (default from batch_size)")
	importCmd.Flags().StringToStringVar(&importEdits, "id", nil, "override a row's identifier as index=id (repeatable)")
	importCmd.Flags().BoolVarP(&importQuiet, "quiet", "q", false, "only print the final summary")

	syncCmd.Flags().StringVar(&syncDir, "dir", "", "directory to sync (default from data_dir)")
	syncCmd.Flags().BoolVar(&syncPurge, "purge", false, "delete all records before syncing")

	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "confirm deletion")
}
