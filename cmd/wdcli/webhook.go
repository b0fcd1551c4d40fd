package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var eventFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "utxo_deposit_event",
		Usage: "triggers the webhook endpoint whenever a watched wallet receives coins",
		Value: false,
	},
	&cli.BoolFlag{
		Name:  "utxo_spent_event",
		Usage: "triggers the webhook endpoint whenever a watched wallet spends coins",
		Value: false,
	},
	&cli.BoolFlag{
		Name:  "any_event",
		Usage: "triggers the webhook endpoint whenever any event occurs",
		Value: false,
	},
}

var (
	webhook = cli.Command{
		Name:  "webhook",
		Usage: "add or remove webhooks",
		Subcommands: []*cli.Command{
			webhookAddCmd, webhookRemoveCmd,
		},
	}
	listwebhooks = cli.Command{
		Name:   "webhooks",
		Usage:  "list all webhooks, optionally filtered by target event",
		Flags:  eventFlags,
		Action: listWebhooksAction,
	}

	webhookAddCmd = &cli.Command{
		Name:  "add",
		Usage: "add a webhook notified for some event",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "the endpoint where to notify the webhook",
				Value: "",
			},
			&cli.StringFlag{
				Name: "secret",
				Usage: "the eventual secret used to sign the token for " +
					"authenticating requests to the webhook endpoint",
				Value: "",
			},
		}, eventFlags...),
		Action: addWebhookAction,
	}

	webhookRemoveCmd = &cli.Command{
		Name:  "remove",
		Usage: "remove a webhook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "the id of the webhook to remove",
				Value: "",
			},
		},
		Action: removeWebhookAction,
	}
)

func addWebhookAction(ctx *cli.Context) error {
	client, err := getDaemonClient()
	if err != nil {
		return err
	}

	topic, err := parseEvent(ctx)
	if err != nil {
		return err
	}
	if len(topic) <= 0 {
		return fmt.Errorf("missing event")
	}

	id, err := client.addWebhook(topic, ctx.String("endpoint"), ctx.String("secret"))
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("webhook id:", id)
	return nil
}

func removeWebhookAction(ctx *cli.Context) error {
	client, err := getDaemonClient()
	if err != nil {
		return err
	}

	hookID := ctx.String("id")
	if len(hookID) <= 0 {
		return fmt.Errorf("missing webhook id")
	}

	if err := client.removeWebhook(hookID); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("removed webhook with id:", hookID)
	return nil
}

func listWebhooksAction(ctx *cli.Context) error {
	client, err := getDaemonClient()
	if err != nil {
		return err
	}

	topic, err := parseEvent(ctx)
	if err != nil {
		return err
	}

	reply, err := client.listWebhooks(topic)
	if err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

// parseEvent returns the topic selected with the event flags, at most one
// can be set.
func parseEvent(ctx *cli.Context) (string, error) {
	topics := map[string]string{
		"utxo_deposit_event": "utxo_deposit",
		"utxo_spent_event":   "utxo_spent",
		"any_event":          "*",
	}

	topic := ""
	for flag, t := range topics {
		if !ctx.Bool(flag) {
			continue
		}
		if len(topic) > 0 {
			return "", fmt.Errorf("only one event flag can be set")
		}
		topic = t
	}
	return topic, nil
}
