package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tweetgraph/pkg/auth"
	"tweetgraph/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored API bearer tokens",
	Long: `Manage API bearer tokens stored outside the config file.

Tokens are kept per profile in:
  - the system keychain, when available
  - an encrypted file (PBKDF2 + AES-GCM, passphrase from TWEETGRAPH_PASSPHRASE
    or generated on first use)

TWEETGRAPH_BEARER_TOKEN is always honoured and takes precedence over stored
tokens.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a bearer token for --profile",
	Long: `Prompt for a bearer token and store it under --profile.

Create the token in the developer portal under your project's
"Keys and tokens" page. The token is read without echo when stdin is a
terminal, so it can also be piped in.`,
	Example: `  tweetgraph auth login
  tweetgraph auth login --profile research
  echo "$TOKEN" | tweetgraph auth login`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the token stored for --profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Delete(profile); err != nil {
			return err
		}
		ui.PrintSuccess("Removed credentials for profile " + profile)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored profiles with masked tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		creds, err := manager.List()
		if err != nil {
			return err
		}
		if len(creds) == 0 {
			ui.PrintWarning("No credentials stored")
			ui.PrintHint("Run 'tweetgraph auth login' or set " + auth.TokenEnv)
			return nil
		}
		for _, c := range creds {
			masked := c.Masked()
			line := masked.BearerToken
			if !c.LastModified.IsZero() {
				line += "  (saved " + c.LastModified.Format("2006-01-02 15:04") + ")"
			} else {
				line += "  (from environment)"
			}
			ui.PrintInfo(c.Profile, line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	fmt.Fprint(os.Stderr, "Bearer token: ")
	token, err := readSecret(os.Stdin)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return errors.New("no token entered")
	}

	cred := &auth.Credential{Profile: profile, BearerToken: token}
	if err := manager.Store(cred); err != nil {
		return err
	}
	ui.PrintSuccess("Stored token for profile " + profile)
	ui.PrintInfo("Token", cred.Masked().BearerToken)
	return nil
}

// readSecret reads one line without echo from a terminal, or plainly from a
// pipe
func readSecret(in *os.File) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
