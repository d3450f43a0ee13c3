package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/search"
	"github.com/KaramelBytes/listingloom/internal/usage"
)

var (
	statsUser string
	statsIP   string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record count, last sync time and optionally a subject's usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Count(ctx)
		if err != nil {
			return err
		}
		last, err := st.LastSync(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Records: %d\n", n)
		if last.IsZero() {
			fmt.Println("Last sync: never")
		} else {
			fmt.Printf("Last sync: %s (%s ago)\n", last.Local().Format(time.RFC1123), time.Since(last).Round(time.Minute))
		}

		if statsUser == "" && statsIP == "" {
			return nil
		}
		subject := model.Subject{UserID: statsUser, IP: statsIP}
		if subject.UserID == "" {
			subject.UserID = search.AnonymousUser
		}
		lim := usage.New(st, cfg.DailyLimit, cfg.MonthlyLimit)
		c, err := lim.Status(ctx, subject)
		if err != nil {
			return err
		}
		daily, monthly := lim.Limits()
		fmt.Printf("Usage for user %s from %s: %s today, %s this month\n",
			subject.UserID, subject.IP, ofLimit(c.DailyCount, daily), ofLimit(c.MonthlyCount, monthly))
		return nil
	},
}

func ofLimit(n, limit int) string {
	if limit <= 0 {
		return fmt.Sprintf("%d (unlimited)", n)
	}
	return fmt.Sprintf("%d/%d", n, limit)
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsUser, "user", "", "show usage for this user id")
	statsCmd.Flags().StringVar(&statsIP, "ip", "", "client IP of the subject")
}
