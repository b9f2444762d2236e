package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/existflow/sitegate/internal/logger"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the gated site",
	Long: `Log in with the shared username and password. Once the OTP start date
has passed, a one-time code is e-mailed to the site owner and prompted for.`,
	RunE: runLogin,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [code]",
	Short: "Submit the e-mailed one-time code",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVerify,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringP("username", "u", "", "Username (prompted when empty)")
	loginCmd.Flags().Bool("direct", false, "Use the plain password endpoint, skipping the OTP step")
	loginCmd.Flags().Bool("no-wait", false, "Do not prompt for the code; submit it later with 'sitegate verify'")
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func runLogin(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	username, _ := cmd.Flags().GetString("username")
	if username == "" {
		fmt.Print("Username: ")
		username, _ = reader.ReadString('\n')
		username = strings.TrimSpace(username)
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	if direct, _ := cmd.Flags().GetBool("direct"); direct {
		fmt.Println("Logging in...")
		if err := c.Login(ctx, username, password); err != nil {
			return err
		}
		fmt.Println("Logged in.")
		return nil
	}

	fmt.Println("Checking credentials...")
	res, err := c.RequestOTP(ctx, username, password)
	if err != nil {
		return err
	}

	if res.Authenticated {
		fmt.Println("Logged in (no code required yet).")
		return nil
	}

	fmt.Println(res.Message)
	logger.Info("OTP requested", logger.F("server", c.ServerURL()))

	if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
		fmt.Println("Submit the code with: sitegate verify <code>")
		return nil
	}

	fmt.Print("Code: ")
	code, _ := reader.ReadString('\n')
	code = strings.TrimSpace(code)
	if code == "" {
		fmt.Println("No code entered. Submit it later with: sitegate verify <code>")
		return nil
	}

	verifyCtx, verifyCancel := requestContext()
	defer verifyCancel()
	if err := c.VerifyOTP(verifyCtx, code); err != nil {
		return err
	}
	fmt.Println("Logged in.")
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var code string
	if len(args) == 1 {
		code = args[0]
	} else {
		fmt.Print("Code: ")
		code, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}

	ctx, cancel := requestContext()
	defer cancel()
	if err := c.VerifyOTP(ctx, code); err != nil {
		return err
	}
	fmt.Println("Logged in.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	fmt.Println("Logging out...")
	if err := c.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
