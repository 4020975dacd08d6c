package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/reviewlens/internal/analysis"
	"github.com/kalambet/reviewlens/internal/api"
	"github.com/kalambet/reviewlens/internal/config"
	"github.com/kalambet/reviewlens/internal/ingest"
	"github.com/kalambet/reviewlens/internal/reviews"
	"github.com/kalambet/reviewlens/internal/storage"
)

// --- products ---

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the popular-products menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listProducts(cmd.Context(), client, cmd.OutOrStdout(), asJSON)
	},
}

func listProducts(ctx context.Context, client *apiClient, w io.Writer, asJSON bool) error {
	resp, err := client.get(ctx, "/products")
	if err != nil {
		return err
	}

	var menu []reviews.MenuEntry
	if err := decodeJSON(resp, &menu); err != nil {
		return err
	}

	if asJSON {
		return writeIndented(w, menu)
	}
	if len(menu) == 0 {
		fmt.Fprintln(w, "No products with enough reviews.")
		return nil
	}
	for _, m := range menu {
		fmt.Fprintf(w, "  %s  %s\n", colorize(colorBold, m.ASIN), m.Title)
	}
	return nil
}

func init() {
	productsCmd.Flags().Bool("json", false, "print the menu as JSON")
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <asin>",
	Short: "Analyze the reviews of one product",
	Long: `Analyze the reviews of one product.

Examples:
  reviewlens analyze B07PNNCSP9
  reviewlens analyze B07PNNCSP9 --reviews 5
  reviewlens analyze B07PNNCSP9 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		show, _ := cmd.Flags().GetInt("reviews")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return analyzeProduct(cmd.Context(), client, cmd.OutOrStdout(), args[0], asJSON, show)
	},
}

func analyzeProduct(ctx context.Context, client *apiClient, w io.Writer, asin string, asJSON bool, show int) error {
	resp, err := client.get(ctx, "/analyze/"+url.PathEscape(asin))
	if err != nil {
		return err
	}

	var res analysis.Result
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}

	if asJSON {
		return writeIndented(w, &res)
	}
	renderAnalysis(w, &res, show)
	return nil
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "print the raw analysis as JSON")
	analyzeCmd.Flags().Int("reviews", 0, "number of annotated reviews to print")
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record or list verdicts on analyses",
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add <asin> <positive|negative>",
	Short: "Record a verdict on a product's analysis",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		entry, err := addFeedback(cmd.Context(), client, args[0], args[1])
		if err != nil {
			return err
		}
		printSuccess("Recorded %s feedback for %s (%s)", entry.Feedback, entry.ASIN, entry.ID)
		return nil
	},
}

func addFeedback(ctx context.Context, client *apiClient, asin, verdict string) (api.FeedbackEntry, error) {
	var entry api.FeedbackEntry
	resp, err := client.post(ctx, "/analyze/"+url.PathEscape(asin)+"/feedback",
		api.FeedbackRequest{Feedback: strings.ToUpper(verdict)})
	if err != nil {
		return entry, err
	}
	err = decodeJSON(resp, &entry)
	return entry, err
}

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent feedback, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listFeedback(cmd.Context(), client, cmd.OutOrStdout(), limit)
	},
}

func listFeedback(ctx context.Context, client *apiClient, w io.Writer, limit int) error {
	resp, err := client.get(ctx, fmt.Sprintf("/feedback?limit=%d", limit))
	if err != nil {
		return err
	}

	var entries []api.FeedbackEntry
	if err := decodeJSON(resp, &entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No feedback recorded.")
		return nil
	}
	for _, e := range entries {
		color := colorGreen
		if e.Feedback == "NEGATIVE" {
			color = colorRed
		}
		fmt.Fprintf(w, "  %s  %-10s %s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"), e.ASIN, colorize(color, e.Feedback), e.ID)
	}
	return nil
}

func init() {
	feedbackListCmd.Flags().Int("limit", 20, "number of entries to show")
	feedbackCmd.AddCommand(feedbackAddCmd, feedbackListCmd)
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Replace the review dataset from JSON Lines dumps",
	Long: `Replace the review dataset from JSON Lines dumps.

Both files may be gzip-compressed (.gz). The stored dataset is replaced only
if both files parse cleanly.

Examples:
  reviewlens ingest --reviews All_Beauty.jsonl --meta meta_All_Beauty.jsonl
  reviewlens ingest --reviews All_Beauty.jsonl.gz --meta meta_All_Beauty.jsonl.gz --reload`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewsPath, _ := cmd.Flags().GetString("reviews")
		metaPath, _ := cmd.Flags().GetString("meta")
		reload, _ := cmd.Flags().GetBool("reload")

		if reviewsPath == "" || metaPath == "" {
			return fmt.Errorf("both --reviews and --meta are required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		printStep("Importing %s and %s", reviewsPath, metaPath)
		st, err := ingest.NewImporter(store).Import(cmd.Context(), reviewsPath, metaPath)
		if err != nil {
			return err
		}
		printIngestStats(os.Stderr, st)

		if reload {
			return signalServer(syscall.SIGHUP, "reload")
		}
		printStep("Run `reviewlens reload` to serve the new dataset")
		return nil
	},
}

func printIngestStats(w io.Writer, st ingest.Stats) {
	printSuccess("Imported %d products and %d reviews (batch %s)", st.Products, st.Reviews, st.BatchID)
	fmt.Fprintf(w, "  read %d reviews, %d product records (%d duplicates)\n",
		st.ReviewsRead, st.ProductsRead, st.DuplicateProducts)
	if st.Unmatched > 0 || st.Dropped > 0 {
		fmt.Fprintf(w, "  skipped %d reviews without metadata, %d with empty text or title\n", st.Unmatched, st.Dropped)
	}
}

func init() {
	ingestCmd.Flags().String("reviews", "", "reviews JSONL file (optionally .gz)")
	ingestCmd.Flags().String("meta", "", "product metadata JSONL file (optionally .gz)")
	ingestCmd.Flags().Bool("reload", false, "signal the running server to reload afterwards")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
	Long:  "Show or update configuration. Values are read from defaults, then the\nconfig file, then REVIEWLENS_* environment variables.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", colorize(colorCyan, config.FilePath()))
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value in the config file.

Valid keys:
  %s`, strings.Join(config.ValidKeys(), "\n  ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value, restoring its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
