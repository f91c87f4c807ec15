package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/models"
	"github.com/spf13/cobra"
)

var (
	jobsUser  string
	jobsBatch int
	jobsWatch bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect processing jobs",
	Long: `List processing jobs or inspect a specific job by ID.

Examples:
  profiled jobs                   # List all jobs
  profiled jobs --user alice      # List alice's jobs
  profiled jobs abc123            # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Trigger a new processing job for a user",
	Long: `Create a job that examines the user's unprocessed conversations and
updates their memory profile. Processing happens in the background.

Examples:
  profiled jobs create --user alice
  profiled jobs create --user alice --batch 5 --watch`,
	RunE: runJobsCreate,
}

func init() {
	jobsCmd.Flags().StringVarP(&jobsUser, "user", "u", "", "filter jobs by user id")
	jobsCreateCmd.Flags().StringVarP(&jobsUser, "user", "u", "", "user id (required)")
	jobsCreateCmd.Flags().IntVarP(&jobsBatch, "batch", "b", 0, "batch size override")
	jobsCreateCmd.Flags().BoolVarP(&jobsWatch, "watch", "w", false, "watch progress until the job finishes")
	_ = jobsCreateCmd.MarkFlagRequired("user")

	jobsCmd.AddCommand(jobsCreateCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	jobs, err := apiClient.ListJobs(ctx, jobsUser)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-38s %-12s %-12s %-10s %s\n", "ID", "USER", "STATUS", "PROGRESS", "CREATED")
	fmt.Println("--------------------------------------------------------------------------------------")

	for _, job := range jobs {
		progress := ""
		if job.TotalConversations > 0 {
			progress = fmt.Sprintf("%d/%d", job.ProcessedConversations, job.TotalConversations)
		}
		fmt.Printf("%-38s %-12s %-12s %-10s %s\n",
			models.MustRecordIDString(job.ID),
			job.UserID,
			job.Status,
			progress,
			job.CreatedAt.Format("15:04:05"))
	}
	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := apiClient.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	fmt.Printf("Job: %s\n", models.MustRecordIDString(job.ID))
	fmt.Printf("  User: %s\n", job.UserID)
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("  Progress: %d/%d (%d%%)\n",
		job.ProcessedConversations, job.TotalConversations, job.ProgressPercentage)
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			fmt.Printf("  Duration: %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Second))
		}
	}
	if job.Error != nil && *job.Error != "" {
		fmt.Printf("  Error: %s\n", *job.Error)
	}

	if len(job.ProcessingDetails) > 0 {
		fmt.Println("\nDetails:")
		for _, key := range []string{"extracted", "skipped", "failed", "duplicate_attempts"} {
			if v, ok := job.ProcessingDetails[key]; ok {
				fmt.Printf("  %-20s %v\n", key+":", v)
			}
		}
		if v, ok := job.ProcessingDetails["summary_error"]; ok {
			fmt.Printf("  %-20s %v\n", "summary error:", v)
		}
	}

	if job.Profile != nil {
		fmt.Printf("\nProfile: version %d, %d conversations, %d messages\n",
			job.Profile.Version, job.Profile.ConversationCount, job.Profile.MessageCount)
	}
	return nil
}

func runJobsCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	job, err := apiClient.CreateJob(ctx, jobsUser, jobsBatch)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	jobID := models.MustRecordIDString(job.ID)
	fmt.Printf("Job %s created (%d conversations to examine)\n", jobID, job.TotalConversations)

	if jobsWatch {
		return watchJob(jobID)
	}
	fmt.Printf("Use 'profiled jobs %s' to check status.\n", jobID)
	return nil
}
