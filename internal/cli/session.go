package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/sitegate/internal/config"
	"github.com/existflow/sitegate/internal/idle"
	"github.com/existflow/sitegate/internal/tui"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Extend the current session",
	RunE:  runRefresh,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	RunE:  runStatus,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor the session for inactivity",
	Long: `Open a terminal monitor for the current session. Keypresses and mouse
movement count as activity. After the idle timeout minus the warning lead a
countdown appears; press s to stay logged in. When it runs out the session is
logged out.`,
	RunE: runWatch,
}

func init() {
	statusCmd.Flags().Bool("check", false, "Also ask the server whether the site lets this session through")

	addWatchFlags(watchCmd)
}

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 0, "Inactivity timeout (default SESSION_TIMEOUT_MINUTES)")
	cmd.Flags().Duration("warning", 0, "Warning lead before the timeout (default INACTIVITY_WARNING_MINUTES)")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	exp, err := c.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Session extended until %s\n", exp.Local().Format(time.Kitchen))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	fmt.Printf("Server:  %s\n", c.ServerURL())

	st := c.Status(time.Now())
	switch {
	case st.LoggedIn:
		fmt.Printf("Session: active, expires %s (%s left)\n",
			st.ExpiresAt.Local().Format(time.Kitchen), st.Remaining.Round(time.Second))
	case !st.ExpiresAt.IsZero():
		fmt.Printf("Session: expired at %s\n", st.ExpiresAt.Local().Format(time.Kitchen))
	default:
		fmt.Println("Session: none")
	}

	if check, _ := cmd.Flags().GetBool("check"); check {
		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.Get(ctx, "/")
		if err != nil {
			return err
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusFound {
			fmt.Printf("Gate:    redirects to %s\n", resp.Header.Get("Location"))
		} else {
			fmt.Printf("Gate:    %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	if !c.Status(time.Now()).LoggedIn {
		return fmt.Errorf("no active session; run 'sitegate login' first")
	}

	expired, err := tui.Run(c, watchOptions(cmd, cfg, c.ServerURL()))
	if err != nil {
		return fmt.Errorf("failed to run monitor: %w", err)
	}
	if expired {
		fmt.Println("Session expired due to inactivity. Run 'sitegate login' to sign in again.")
	}
	return nil
}

// watchOptions takes the idle timeout and warning lead from the session
// config so the monitor matches the server's cookie lifetime. Explicit
// flags win.
func watchOptions(cmd *cobra.Command, c *config.Config, server string) tui.Options {
	opts := tui.Options{
		Server:  server,
		Timeout: idle.DefaultTimeout,
		Warning: idle.DefaultWarning,
	}
	if c != nil {
		opts.Timeout = c.SessionTTL()
		opts.Warning = c.WarningLead()
	}

	if cmd.Flags().Changed("timeout") {
		opts.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if cmd.Flags().Changed("warning") {
		opts.Warning, _ = cmd.Flags().GetDuration("warning")
	}
	return opts
}
