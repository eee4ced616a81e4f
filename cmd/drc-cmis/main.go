package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "drc-cmis"
	app.Usage = "talk to the DMS that stores the documents of the DRC"

	// Declare flags common to commands, and pass them in Flags below.
	confFlag := cli.StringFlag{
		Name:   "conf",
		Usage:  "Path to yaml config",
		EnvVar: "DRC_CMIS_CONFIG",
	}

	yesFlag := cli.BoolFlag{
		Name:  "yes",
		Usage: "confirm removal of every folder in the base folder",
	}

	app.Commands = []cli.Command{
		{
			Name:   "check",
			Usage:  "Check that the DMS is reachable and has the required capabilities",
			Flags:  []cli.Flag{confFlag},
			Action: check,
		},
		{
			Name:   "validate",
			Usage:  "Validate the configuration, the folder paths and the mapping file",
			Flags:  []cli.Flag{confFlag},
			Action: validate,
		},
		{
			Name:   "cleanup",
			Usage:  "Delete all folders in the base folder. Meant for test repositories",
			Flags:  []cli.Flag{confFlag, yesFlag},
			Action: cleanup,
		},
		{
			Name:      "document",
			Usage:     "Print the latest version of a document",
			ArgsUsage: "<uuid>",
			Flags:     []cli.Flag{confFlag},
			Action:    document,
		},
	}

	// Global flags. Used when no "command" passed.
	app.Flags = []cli.Flag{
		confFlag,
	}

	// There is no "default" command. Print help and exit.
	app.Action = func(clictx *cli.Context) error {
		fmt.Printf("Must specify command. Run `%s help` for info\n", app.Name)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
