package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"wpharvest/pkg/auth"
	"wpharvest/pkg/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage WordPress application passwords",
	Long: `Manage stored WordPress application-password credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Application passwords are issued per account under the WordPress admin at
Users > Profile > Application Passwords. They are not the login password.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store an application password securely",
	Long: `Store a WordPress application password in the system keychain or an
encrypted file. You will be prompted for the site URL (unless --url is
given), the username (unless provided) and the application password.`,
	Example: `  # Interactive login
  wpharvest auth login

  # Login for a known site and user
  wpharvest auth login editor --url https://example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthLogout,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List all stored accounts with the application password masked.`,
	RunE:  runAuthList,
}

var authSiteURL string

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authListCmd)

	authCmd.PersistentFlags().StringVar(&authSiteURL, "url", "", "WordPress site URL")
}

func siteFromFlagOrPrompt(reader *bufio.Reader) (string, error) {
	site := authSiteURL
	if site == "" {
		fmt.Print("Site URL: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		site = strings.TrimSpace(line)
	}
	if site == "" {
		return "", fmt.Errorf("site URL is required")
	}
	cfg := config.Config{}
	cfg.Site.URL = site
	return cfg.SourceURL(), nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	site, err := siteFromFlagOrPrompt(reader)
	if err != nil {
		return err
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	fmt.Print("Application password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	account := &auth.Account{
		Site:        site,
		Username:    username,
		AppPassword: strings.TrimSpace(string(password)),
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	fmt.Printf("Stored credentials for %s on %s\n", username, site)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	site, err := siteFromFlagOrPrompt(reader)
	if err != nil {
		return err
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}

	if err := manager.Delete(site, username); err != nil {
		return err
	}

	fmt.Printf("Removed credentials for %s on %s\n", username, site)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts")
		return nil
	}

	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Printf("%s  %s  %s\n", masked.Site, masked.Username, masked.AppPassword)
	}
	return nil
}
