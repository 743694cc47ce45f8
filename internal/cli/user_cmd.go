package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Operator account management",
	Long:  `Manage operator accounts: create accounts, list them, reset passwords.`,
}

// userCreateCmd creates a new user
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new operator account",
	Long:  `Interactively create an account. Asks for email, password and role.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Error: user service not initialized")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		// Get email
		fmt.Print("Email: ")
		email, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		email = strings.TrimSpace(email)
		if email == "" {
			fmt.Fprintln(os.Stderr, "Error: email is required")
			os.Exit(1)
		}

		// Get password (hidden input)
		fmt.Print("Password (at least 8 characters): ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		password := string(passwordBytes)
		if len(password) < 8 {
			fmt.Fprintln(os.Stderr, "Error: password must be at least 8 characters")
			os.Exit(1)
		}

		// Confirm password
		fmt.Print("Repeat password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		if password != string(confirmBytes) {
			fmt.Fprintln(os.Stderr, "Error: passwords do not match")
			os.Exit(1)
		}

		// Get role
		fmt.Print("Role (admin/user, default user): ")
		role, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		role = strings.TrimSpace(strings.ToLower(role))
		if role != models.RoleAdmin {
			role = models.RoleUser
		}

		// Create user
		newUser, err := userService.CreateUser(email, password, role)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create user: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("User created.")
		fmt.Printf("  ID: %d\n", newUser.ID)
		fmt.Printf("  Email: %s\n", newUser.Email)
		fmt.Printf("  Role: %s\n", newUser.Role)
	},
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all operator accounts",
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Error: user service not initialized")
			os.Exit(1)
		}

		users, err := userService.ListUsers()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list users: %v\n", err)
			os.Exit(1)
		}

		if len(users) == 0 {
			fmt.Println("No users yet.")
			return
		}

		fmt.Println("Users:")
		fmt.Println("----------------------------------------")
		fmt.Printf("%-6s %-30s %-8s %s\n", "ID", "Email", "Role", "Created")
		fmt.Println("----------------------------------------")
		for _, u := range users {
			createdAt := u.CreatedAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%-6d %-30s %-8s %s\n", u.ID, u.Email, u.Role, createdAt)
		}
		fmt.Println("----------------------------------------")
		fmt.Printf("%d user(s)\n", len(users))
	},
}

// userResetPwdCmd resets a user's password
var userResetPwdCmd = &cobra.Command{
	Use:   "reset-pwd",
	Short: "Reset an account password",
	Long:  `Interactively reset the password of one account. Asks for confirmation.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Error: user service not initialized")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		// List users first
		users, err := userService.ListUsers()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list users: %v\n", err)
			os.Exit(1)
		}

		if len(users) == 0 {
			fmt.Println("No users yet.")
			return
		}

		fmt.Println("Accounts:")
		for _, u := range users {
			fmt.Printf("  [%d] %s (%s)\n", u.ID, u.Email, u.Role)
		}
		fmt.Println()

		// Get user ID
		fmt.Print("ID of the account to reset: ")
		idStr, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		idStr = strings.TrimSpace(idStr)
		userID, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: invalid user ID")
			os.Exit(1)
		}

		// Verify user exists
		targetUser, err := userService.GetUserByID(uint(userID))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: user not found: %v\n", err)
			os.Exit(1)
		}

		// Confirm operation
		fmt.Printf("\nWarning: about to reset the password of '%s' (ID: %d).\n", targetUser.Email, targetUser.ID)
		fmt.Print("Continue? (yes/no): ")
		confirm, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
			os.Exit(1)
		}
		confirm = strings.TrimSpace(strings.ToLower(confirm))
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Cancelled.")
			return
		}

		// Get new password
		fmt.Print("New password (at least 8 characters): ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		newPassword := string(passwordBytes)
		if len(newPassword) < 8 {
			fmt.Fprintln(os.Stderr, "Error: password must be at least 8 characters")
			os.Exit(1)
		}

		// Confirm password
		fmt.Print("Repeat new password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: failed to read password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		if newPassword != string(confirmBytes) {
			fmt.Fprintln(os.Stderr, "Error: passwords do not match")
			os.Exit(1)
		}

		// Reset password directly, no old password needed from the console
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to hash password: %v\n", err)
			os.Exit(1)
		}
		if err := db.Model(&models.User{}).Where("id = ?", targetUser.ID).
			Update("password_hash", string(hash)).Error; err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to reset password: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Printf("Password of '%s' has been reset.\n", targetUser.Email)
	},
}

func init() {
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userResetPwdCmd)
}
