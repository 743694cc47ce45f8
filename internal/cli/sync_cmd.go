package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// syncCmd represents the sync command group
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Submission synchronization",
	Long:  `Trigger submission syncs from the console, outside the scheduler cadence.`,
}

// syncRunCmd syncs all active sites
var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Sync all active sites now",
	Run: func(cmd *cobra.Command, args []string) {
		sites, err := siteService.ListSites(false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list sites: %v\n", err)
			os.Exit(1)
		}
		if len(sites) == 0 {
			fmt.Println("No active sites registered.")
			return
		}

		failed := 0
		for _, site := range sites {
			result, err := syncService.SyncSite(context.Background(), site.ID)
			if err != nil {
				fmt.Printf("  %s: error: %v\n", site.Name, err)
				failed++
				continue
			}
			if result.Status != "success" {
				fmt.Printf("  %s: %s\n", site.Name, result.Message)
				failed++
				continue
			}
			fmt.Printf("  %s: %d forms found, %d synced, %d errors (%s)\n",
				site.Name, result.FormsFound, result.SubmissionsSynced, result.Errors, result.Duration.Round(0))
		}

		if failed > 0 {
			fmt.Printf("Done with %d failure(s).\n", failed)
			os.Exit(1)
		}
		fmt.Println("Done.")
	},
}

// syncSiteCmd syncs one site by id
var syncSiteCmd = &cobra.Command{
	Use:   "site <id>",
	Short: "Sync one site now",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil || id == 0 {
			fmt.Fprintln(os.Stderr, "Error: invalid site ID")
			os.Exit(1)
		}

		result, err := syncService.SyncSite(context.Background(), uint(id))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
			os.Exit(1)
		}
		if result.Status != "success" {
			fmt.Fprintf(os.Stderr, "Sync failed: %s\n", result.Message)
			os.Exit(1)
		}

		fmt.Printf("Form %d: %d synced, %d errors (%s)\n",
			result.FormID, result.SubmissionsSynced, result.Errors, result.Duration.Round(0))
	},
}

func init() {
	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncSiteCmd)
}
