package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/sitegate/internal/auth"
	"github.com/existflow/sitegate/internal/db"
)

var otpRequiredCmd = &cobra.Command{
	Use:   "otp-required",
	Short: "Show whether logins need an e-mailed code today",
	RunE:  runOTPRequired,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for WEB_ACCESS_PASSWORD_HASH",
	RunE:  runHashPassword,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent auth events from the audit store",
	RunE:  runAudit,
}

func init() {
	otpRequiredCmd.Flags().String("date", "", "Start date DD-MM-YYYY (default OTP_START_DATE)")
	otpRequiredCmd.Flags().String("tz", "", "IANA timezone (default OTP_TIMEZONE)")

	auditCmd.Flags().String("driver", "", "sqlite or postgres (default AUDIT_DRIVER)")
	auditCmd.Flags().String("dsn", "", "Database DSN (default AUDIT_DSN)")
	auditCmd.Flags().String("kind", "", "Only this event kind, e.g. login_failed")
	auditCmd.Flags().IntP("limit", "n", 20, "Number of events")
	auditCmd.Flags().Duration("prune", 0, "Delete events older than this (e.g. 720h) before listing")
}

func runOTPRequired(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	tz, _ := cmd.Flags().GetString("tz")
	if date == "" {
		date = cfg.OTP.StartDate
	}
	if tz == "" {
		tz = cfg.OTP.Timezone
	}

	if auth.OTPRequired(date, tz, time.Now()) {
		fmt.Printf("required (start date %q, timezone %q)\n", date, tz)
	} else {
		fmt.Printf("not required until %s\n", date)
	}
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Confirm Password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	driver, _ := cmd.Flags().GetString("driver")
	dsn, _ := cmd.Flags().GetString("dsn")
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")

	if driver == "" {
		driver = cfg.Audit.Driver
	}
	if dsn == "" {
		dsn = cfg.Audit.DSN
	}
	if driver == "" {
		return fmt.Errorf("no audit store configured; set AUDIT_DRIVER or --driver")
	}

	store, err := db.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if prune, _ := cmd.Flags().GetDuration("prune"); prune > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d events older than %s\n", n, prune)
	}

	events, err := store.Recent(ctx, db.EventKind(kind), limit)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No audit events recorded.")
		return nil
	}

	printEvents(events)
	return nil
}

func printEvents(events []db.Event) {
	fmt.Printf("\n%-19s  %-18s  %-15s  %s\n", "TIME", "EVENT", "REMOTE", "DETAIL")
	fmt.Println(strings.Repeat("─", 72))

	for _, e := range events {
		detail := e.Detail
		if len(detail) > 30 {
			detail = detail[:27] + "..."
		}
		fmt.Printf("%-19s  %-18s  %-15s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.RemoteIP, detail)
	}
	fmt.Println()
}
