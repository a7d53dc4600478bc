package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/store"
)

var (
	searchQuery    string
	searchCountry  string
	searchLocation string
	searchIndustry string
	searchTarget   int
	searchTenant   string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one discovery search to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		job := &model.SearchJob{
			TenantID:     searchTenant,
			Query:        searchQuery,
			Country:      searchCountry,
			Location:     searchLocation,
			Industry:     searchIndustry,
			ResultTarget: searchTarget,
			Status:       model.JobStatusPending,
		}
		if err := env.Store.CreateSearchJob(ctx, job); err != nil {
			return eris.Wrap(err, "create search job")
		}

		if err := env.Pipeline.Run(ctx, job.ID); err != nil {
			return eris.Wrap(err, "run search")
		}

		// Wait for the background fill so the CLI prints the full set.
		env.Pipeline.Wait()

		leads, err := env.Store.ListLeads(ctx, store.LeadFilter{SearchJobID: job.ID})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}
		counts, err := env.Store.CountLeads(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "count leads")
		}

		zap.L().Info("search complete",
			zap.String("job_id", job.ID),
			zap.Int("leads", counts.Total),
			zap.Int("extracted", counts.Extracted),
			zap.Int("enriched", counts.Enriched),
			zap.Int("duplicates", counts.Duplicates),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "search query (required)")
	searchCmd.Flags().StringVar(&searchCountry, "country", "", "ISO country code")
	searchCmd.Flags().StringVar(&searchLocation, "location", "", "city or region")
	searchCmd.Flags().StringVar(&searchIndustry, "industry", "", "industry filter")
	searchCmd.Flags().IntVar(&searchTarget, "target", 50, "result target (50, 100 or 200)")
	searchCmd.Flags().StringVar(&searchTenant, "tenant", "anonymous", "tenant ID")
	_ = searchCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(searchCmd)
}
