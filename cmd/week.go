package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/hostbuddy-notifier/internal/config"
	"github.com/example/hostbuddy-notifier/internal/weekthread"
)

// newWeekCmd prints the weekly thread label for a date, handy when checking
// which thread an arrival will land in.
func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week [YYYY-MM-DD]",
		Short: "Print the weekly thread label for a check-in date (defaults to today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(config.DefaultRouting().Timezone)
			if err != nil {
				return err
			}

			checkIn := time.Now()
			if len(args) == 1 {
				checkIn, err = time.ParseInLocation("2006-01-02", args[0], loc)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", args[0], err)
				}
			}

			fmt.Println(weekthread.WeekLabel(checkIn, loc))
			return nil
		},
	}
}
