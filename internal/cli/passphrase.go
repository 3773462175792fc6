package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// NewHashPassphraseCmd prints a bcrypt hash for admin.passphraseHash.
func NewHashPassphraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-passphrase [passphrase]",
		Short: "Hash an admin passphrase for the config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var passphrase string
			if len(args) == 1 {
				passphrase = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read passphrase: %w", err)
				}
				passphrase = strings.TrimRight(line, "\r\n")
			}
			if passphrase == "" {
				return fmt.Errorf("passphrase must not be empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
