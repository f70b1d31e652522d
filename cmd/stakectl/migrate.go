package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"stakeledger/pkg/config"
)

var commandMigrate = &cli.Command{
	Name:      "migrate",
	Usage:     "apply or roll back the SQL migrations in $MIGRATIONS_DIR",
	ArgsUsage: "up | down",
	Action: func(c *cli.Context) error {
		direction := c.Args().First()
		if direction != "up" && direction != "down" {
			return fmt.Errorf("expected up or down, got %q", direction)
		}

		// Only the SQL files touch the schema here.
		os.Setenv("DB_MIGRATE", "none")
		config.InitLogger()
		config.InitDB()

		if direction == "up" {
			config.ExecuteMigrations()
		} else {
			config.RollbackMigration()
		}
		return nil
	},
}
