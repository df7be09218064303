package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/darasa/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	usrRepo user.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -name NAME -email EMAIL [-role student|instructor|admin] - create or update a user")
	fmt.Println("  seed                                                             - provision the demo accounts")
	fmt.Println("  listusers                                                        - print all provisioned accounts")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's display name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email; also their login.")
	addUserRole := addUserCmd.String("role", user.RoleStudent, "One of: student, instructor, admin.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, *addUserRole)
	case "seed":
		return cli.seed()
	case "listusers":
		return cli.listUsers()
	default:
		cli.printUsage()
		return errHelp
	}
}
