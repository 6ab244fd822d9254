package cmd

import (
	"github.com/bnema/taskdump/internal/domain"
	"github.com/spf13/cobra"
)

const defaultChannel = "cli"

func Execute() error {
	return newRootCmd().Execute()
}

type identity struct {
	user    string
	channel string
}

func (i *identity) userID() domain.UserID {
	return domain.UserID(i.user)
}

func (i *identity) channelID() domain.ChannelID {
	return domain.ChannelID(i.channel)
}

func newRootCmd() *cobra.Command {
	who := &identity{}

	rootCmd := &cobra.Command{
		Use:           "td",
		Short:         "taskdump (td): turn a brain dump into tracker tasks",
		Long:          "td (taskdump) splits chaotic text into tasks, estimates how long each one takes, lets you review the batch and pushes it to Todoist exactly once.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&who.user, "user", envOrDefault("USER", "local"), "User the sessions belong to")
	rootCmd.PersistentFlags().StringVar(&who.channel, "channel", defaultChannel, "Conversation channel for follow-ups")

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return app.close()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newOrganizeCmd(app, who),
		newAcceptCmd(app, who),
		newBreakdownCmd(app, who),
		newResumeCmd(app, who),
		newDiscardCmd(app, who),
		newFixTimeCmd(app, who),
		newSessionsCmd(app, who),
		newContextCmd(app, who),
		newSecretCmd(app),
		newServeCmd(app),
	)

	return rootCmd
}
