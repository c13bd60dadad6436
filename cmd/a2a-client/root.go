package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sammcj/go-a2a-core/client"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	url     string
	token   string
	headers []string
	output  string
	timeout time.Duration
}

func (o *globalOptions) client() (*client.Client, error) {
	if o.output != "json" && o.output != "pretty" {
		return nil, fmt.Errorf("unknown output format %q (want json or pretty)", o.output)
	}
	opts := []client.Option{client.WithTimeout(o.timeout)}
	if o.token != "" {
		opts = append(opts, client.WithBearerToken(o.token))
	}
	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q (format: 'Name: Value')", h)
		}
		opts = append(opts, client.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}
	return client.New(o.url, opts...)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "a2a-client",
		Short:        "Send tasks to an A2A agent",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", "http://localhost:8080", "base URL of the A2A agent")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token")
	root.PersistentFlags().StringArrayVar(&opts.headers, "header", nil, "extra request header (format: 'Name: Value'), repeatable")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "pretty", "output format (json, pretty)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout for non-streaming calls")

	root.AddCommand(
		newCardCmd(opts),
		newSendCmd(opts),
		newGetCmd(opts),
		newCancelCmd(opts),
		newSubscribeCmd(opts),
		newPushCmd(opts),
	)
	return root
}
