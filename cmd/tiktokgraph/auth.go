package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tiktokgraph/pkg/auth"
	"tiktokgraph/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Research API credentials",
	Long: `Manage stored Research API client credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store client credentials securely",
	Long: `Store the client key and client secret of a Research API app.

The account name defaults to "default", which is used by 'crawl'
unless --account is given.`,
	Example: `  # Store the default account
  tiktokgraph auth login

  # Store a second app under its own name
  tiktokgraph auth login lab-app`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <account>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with the client secret masked.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowCredentialGuide(ui.Output())
	fmt.Println()

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("Client key: ")
	clientKey, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read client key: %w", err)
	}

	fmt.Print("Client secret (hidden): ")
	clientSecret, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read client secret: %w", err)
	}

	account := &auth.Account{
		Name:         name,
		ClientKey:    strings.TrimSpace(clientKey),
		ClientSecret: clientSecret,
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess("Account saved: " + name)
	if auth.IsKeyringAvailable() {
		ui.PrintInfo("Stored in", "system keychain")
	} else {
		ui.PrintInfo("Stored in", "encrypted file")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'tiktokgraph auth login' to add an account")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. %s\n", i+1, sanitized.Name)
		fmt.Printf("   Client key: %s\n", sanitized.ClientKey)
		fmt.Printf("   Client secret: %s\n", sanitized.ClientSecret)
		fmt.Printf("   Last modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// readPassword reads a secret from stdin without echoing when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
