package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

var (
	watch = cli.Command{
		Name:  "watch",
		Usage: "watch the coin movements of a wallet descriptor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "descriptor",
				Usage:    "the external descriptor of the wallet",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "change_descriptor",
				Usage: "the optional change descriptor of the wallet",
			},
			&cli.UintFlag{
				Name:  "birthday",
				Usage: "the block height before which transactions are ignored",
			},
			&cli.UintFlag{
				Name:  "gap",
				Usage: "the gap limit used to sync the wallet",
			},
			&cli.StringFlag{
				Name:  "network",
				Usage: "the network of the wallet, must match the daemon's one",
			},
		},
		Action: watchAction,
	}
	list = cli.Command{
		Name:   "list",
		Usage:  "list all watched wallets",
		Action: listAction,
	}
	deletedescriptor = cli.Command{
		Name:      "delete",
		Usage:     "stop watching a wallet",
		ArgsUsage: "<name>",
		Action:    deleteAction,
	}
	blockadded = cli.Command{
		Name:  "blockadded",
		Usage: "notify the daemon about a new block to rescan all wallets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "hash",
				Usage:    "the hash of the new block",
				Required: true,
			},
			&cli.UintFlag{
				Name:     "height",
				Usage:    "the height of the new block",
				Required: true,
			},
		},
		Action: blockAddedAction,
	}
)

func watchAction(ctx *cli.Context) error {
	client, err := getDaemonClient()
	if err != nil {
		return err
	}

	req := map[string]interface{}{
		"descriptor": ctx.String("descriptor"),
	}
	if ctx.IsSet("change_descriptor") {
		req["change_descriptor"] = ctx.String("change_descriptor")
	}
	if ctx.IsSet("birthday") {
		req["birthday"] = ctx.Uint("birthday")
	}
	if ctx.IsSet("gap") {
		req["gap"] = ctx.Uint("gap")
	}
	if ctx.IsSet("network") {
		req["network"] = ctx.String("network")
	}

	reply, err := client.watchDescriptor(req)
	if err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func listAction(ctx *cli.Context) error {
	client, err := getDaemonClient()
	if err != nil {
		return err
	}

	reply, err := client.listDescriptors()
	if err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func deleteAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "delete"}
	}

	client, err := getDaemonClient()
	if err != nil {
		return err
	}

	msg, err := client.deleteDescriptor(ctx.Args().First())
	if err != nil {
		return err
	}

	fmt.Println(msg)
	return nil
}

func blockAddedAction(ctx *cli.Context) error {
	client, err := getDaemonClient()
	if err != nil {
		return err
	}

	hash := ctx.String("hash")
	if len(hash) <= 0 {
		return errors.New("missing block hash")
	}

	if err := client.blockAdded(hash, uint32(ctx.Uint("height"))); err != nil {
		return err
	}

	fmt.Println("rescan triggered")
	return nil
}
