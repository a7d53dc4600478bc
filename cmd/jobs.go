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
	jobsTenant string
	jobsStatus string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent search jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		jobs, err := st.ListSearchJobs(ctx, store.JobFilter{
			TenantID: jobsTenant,
			Status:   model.JobStatus(jobsStatus),
			Limit:    jobsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list search jobs")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one search job with its lead counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.GetSearchJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get search job")
		}
		counts, err := st.CountLeads(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "count leads")
		}

		out := struct {
			Job    *model.SearchJob `json:"job"`
			Counts store.LeadCounts `json:"counts"`
		}{job, counts}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a search job and its leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteSearchJob(ctx, args[0]); err != nil {
			return eris.Wrap(err, "delete search job")
		}

		zap.L().Info("search job deleted", zap.String("job_id", args[0]))
		return nil
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsTenant, "tenant", "", "filter by tenant ID")
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "max jobs to list")
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
	rootCmd.AddCommand(jobsCmd)
}
