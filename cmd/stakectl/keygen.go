package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

var commandKeygen = &cli.Command{
	Name:  "keygen",
	Usage: "generate a new signer key and store it encrypted",
	Flags: []cli.Flag{passwordFileFlag, jsonFlag},
	Action: func(c *cli.Context) error {
		pw, err := password(c)
		if err != nil {
			return err
		}
		km := keyManager(c)
		account, err := km.GenerateKeyPair()
		if err != nil {
			return err
		}
		path, err := km.SaveKeyStoreEntry(account, pw)
		if err != nil {
			return err
		}

		address := account.PublicKey.ToBase58()
		if c.Bool(jsonFlag.Name) {
			out, _ := json.Marshal(map[string]string{"address": address, "keyfile": path})
			fmt.Fprintln(c.App.Writer, string(out))
			return nil
		}
		fmt.Fprintf(c.App.Writer, "Address: %s\nKeyfile: %s\n", address, path)
		return nil
	},
}
