package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sammcj/go-a2a-core/a2a"
)

func newCardCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "card",
		Short: "Fetch the agent card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			card, err := c.FetchAgentCard(cmd.Context())
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), opts.output).card(card)
		},
	}
}

func newSendCmd(opts *globalOptions) *cobra.Command {
	var (
		taskID    string
		sessionID string
		history   int
		stream    bool
	)
	cmd := &cobra.Command{
		Use:   "send <message>...",
		Short: "Send a text message to a task, creating it if needed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if taskID == "" {
				taskID = uuid.NewString()
			}
			params := &a2a.TaskSendParams{
				ID:        taskID,
				SessionID: sessionID,
				Message:   a2a.NewTextMessage(a2a.RoleUser, strings.Join(args, " ")),
			}
			if cmd.Flags().Changed("history") {
				params.HistoryLength = &history
			}

			p := newPrinter(cmd.OutOrStdout(), opts.output)
			if stream {
				events, errs := c.SendTaskSubscribe(cmd.Context(), params)
				return p.stream(events, errs)
			}
			t, err := c.SendTask(cmd.Context(), params)
			if err != nil {
				return err
			}
			return p.task(t)
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id (default: a new uuid)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session id")
	cmd.Flags().IntVar(&history, "history", 0, "number of history messages to return")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream events with tasks/sendSubscribe")
	return cmd
}

func newGetCmd(opts *globalOptions) *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Get a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			var limit *int
			if cmd.Flags().Changed("history") {
				limit = &history
			}
			t, err := c.GetTask(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), opts.output).task(t)
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "number of history messages to return")
	return cmd
}

func newCancelCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			t, err := c.CancelTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), opts.output).task(t)
		},
	}
}

func newSubscribeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <task-id>",
		Short: "Stream the events of an existing task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			events, errs := c.Resubscribe(cmd.Context(), args[0])
			return newPrinter(cmd.OutOrStdout(), opts.output).stream(events, errs)
		},
	}
}

func newPushCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Manage push notification settings of a task",
	}

	var token string
	setCmd := &cobra.Command{
		Use:   "set <task-id> <webhook-url>",
		Short: "Send the task's events to a webhook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			cfg, err := c.SetPushNotification(cmd.Context(), args[0], a2a.PushNotificationConfig{URL: args[1], Token: token})
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), opts.output).pushConfig(cfg)
		},
	}
	setCmd.Flags().StringVar(&token, "push-token", "", "token the agent sends to the webhook")

	getCmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show the task's webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			cfg, err := c.GetPushNotification(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), opts.output).pushConfig(cfg)
		},
	}

	cmd.AddCommand(setCmd, getCmd)
	return cmd
}

// describePart summarises a non-text part for pretty output.
func describePart(part a2a.Part) string {
	switch p := part.(type) {
	case a2a.TextPart:
		return p.Text
	case a2a.FilePart:
		name := p.File.Name
		if name == "" {
			name = p.File.URI
		}
		return fmt.Sprintf("[file: %s %s]", name, p.File.MimeType)
	case a2a.DataPart:
		return fmt.Sprintf("[data: %d fields]", len(p.Data))
	default:
		return "[" + part.PartType() + "]"
	}
}
