package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// keyCmd represents the key command group
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "API key management",
	Long:  `Manage the API key: show the current key or reset it.`,
}

// keyShowCmd shows the current API key
var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current API key",
	Run: func(cmd *cobra.Command, args []string) {
		if apiKeyManager == nil {
			fmt.Fprintln(os.Stderr, "Error: API key manager not initialized")
			os.Exit(1)
		}

		currentKey := apiKeyManager.GetCurrentKey()
		if currentKey == "" {
			fmt.Fprintln(os.Stderr, "Error: failed to read API key")
			os.Exit(1)
		}

		fmt.Println("Current API key:")
		fmt.Println(currentKey)
	},
}

// keyResetCmd resets the API key
var keyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the API key",
	Long:  `Generate a new API key. The old key stops working. Asks for confirmation.`,
	Run: func(cmd *cobra.Command, args []string) {
		if apiKeyManager == nil {
			fmt.Fprintln(os.Stderr, "Error: API key manager not initialized")
			os.Exit(1)
		}

		// Show current key
		oldKey := apiKeyManager.GetCurrentKey()
		fmt.Println("Current API key:")
		fmt.Println(oldKey)
		fmt.Println()

		// Ask for confirmation
		fmt.Print("Warning: after the reset, clients using the old key lose access.\n")
		fmt.Print("Reset the API key? (yes/no): ")

		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
			os.Exit(1)
		}

		input = strings.TrimSpace(strings.ToLower(input))
		if input != "yes" && input != "y" {
			fmt.Println("Cancelled.")
			return
		}

		// Reset the key
		newKey, err := apiKeyManager.ResetKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to reset key: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("API key reset.")
		fmt.Println("New API key:")
		fmt.Println(newKey)
	},
}

func init() {
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyResetCmd)
}
