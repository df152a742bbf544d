package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Review agent submissions",
}

var agentsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List agents awaiting review",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiRequest("GET", "/api/v1/admin/agents/pending", nil)
		if err != nil {
			return err
		}

		if output == "json" {
			printResult(resp)
			return nil
		}

		agents, _ := resp["agents"].([]interface{})
		if len(agents) == 0 {
			fmt.Println("No pending agents")
			return nil
		}
		for _, a := range agents {
			agent, _ := a.(map[string]interface{})
			fmt.Printf("%s  %-30s  %-14s  %s\n",
				agent["id"], agent["name"], agent["category"], agent["app_url"])
		}
		return nil
	},
}

var agentsApproveCmd = &cobra.Command{
	Use:   "approve <agent-id>",
	Short: "Approve a pending agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiRequest("POST", "/api/v1/admin/agents/"+args[0]+"/approve", nil)
		if err != nil {
			return err
		}
		if output == "json" {
			printResult(resp)
		} else {
			fmt.Printf("Approved %s\n", resp["name"])
		}
		return nil
	},
}

var rejectReason string

var agentsRejectCmd = &cobra.Command{
	Use:   "reject <agent-id>",
	Short: "Reject a pending agent with a reason",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rejectReason == "" {
			return fmt.Errorf("--reason is required")
		}
		body := map[string]string{"reason": rejectReason}
		resp, err := apiRequest("POST", "/api/v1/admin/agents/"+args[0]+"/reject", body)
		if err != nil {
			return err
		}
		if output == "json" {
			printResult(resp)
		} else {
			fmt.Printf("Rejected %s\n", resp["name"])
		}
		return nil
	},
}

func init() {
	agentsRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Reason shown to the author")
	agentsCmd.AddCommand(agentsPendingCmd)
	agentsCmd.AddCommand(agentsApproveCmd)
	agentsCmd.AddCommand(agentsRejectCmd)
}
