package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List registrations awaiting approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiRequest("GET", "/api/v1/admin/users/pending", nil)
		if err != nil {
			return err
		}

		if output == "json" {
			printResult(resp)
			return nil
		}

		users, _ := resp["users"].([]interface{})
		if len(users) == 0 {
			fmt.Println("No pending users")
			return nil
		}
		for _, u := range users {
			user, _ := u.(map[string]interface{})
			fmt.Printf("%s  %-24s  %s\n", user["id"], user["username"], user["email"])
		}
		return nil
	},
}

var usersApproveCmd = &cobra.Command{
	Use:   "approve <user-id>",
	Short: "Activate a pending registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiRequest("POST", "/api/v1/admin/users/"+args[0]+"/approve", nil)
		if err != nil {
			return err
		}
		if output == "json" {
			printResult(resp)
		} else {
			fmt.Printf("Approved %s\n", resp["username"])
		}
		return nil
	},
}

var usersDeactivateCmd = &cobra.Command{
	Use:   "deactivate <user-id>",
	Short: "Deactivate an active user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiRequest("POST", "/api/v1/admin/users/"+args[0]+"/deactivate", nil)
		if err != nil {
			return err
		}
		if output == "json" {
			printResult(resp)
		} else {
			fmt.Printf("Deactivated %s\n", resp["username"])
		}
		return nil
	},
}

var usersRejectCmd = &cobra.Command{
	Use:   "reject <user-id>",
	Short: "Permanently delete a registration that was never activated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiRequest("DELETE", "/api/v1/admin/users/"+args[0], nil)
		if err != nil {
			return err
		}
		if output == "json" {
			printResult(resp)
		} else {
			fmt.Println("Registration rejected")
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog and engagement totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiRequest("GET", "/api/v1/admin/stats", nil)
		if err != nil {
			return err
		}
		printResult(resp)
		return nil
	},
}

func init() {
	usersCmd.AddCommand(usersPendingCmd)
	usersCmd.AddCommand(usersApproveCmd)
	usersCmd.AddCommand(usersDeactivateCmd)
	usersCmd.AddCommand(usersRejectCmd)
}
