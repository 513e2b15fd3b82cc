package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskboard",
		Short:         "Shared kanban board for small teams",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("url", "", "gateway URL (default http://localhost:8080)")
	root.PersistentFlags().String("log-level", "", "DEBUG, INFO, WARN or ERROR")

	root.AddCommand(signupCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(whoamiCmd())
	root.AddCommand(projectsCmd())
	root.AddCommand(membersCmd())
	root.AddCommand(boardCmd())
	root.AddCommand(taskCmd())
	root.AddCommand(commentCmd())
	return root
}
