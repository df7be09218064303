package main

import (
	"github.com/trezcool/darasa/core/user"
)

// demo accounts mirroring the provisioned logins of a fresh install
var seedUsers = []struct {
	name  string
	email string
	role  string
}{
	{"Alice", "alice@example.com", user.RoleStudent},
	{"Peter", "peter@example.com", user.RoleStudent},
	{"Bob", "bob@example.com", user.RoleStudent},
	{"Charlie", "charlie@example.com", user.RoleInstructor},
	{"Tony", "tony@example.com", user.RoleInstructor},
	{"Diana", "diana@example.com", user.RoleAdmin},
}

func (cli *commandLine) seed() error {
	for _, su := range seedUsers {
		if err := cli.addUser(su.name, su.email, su.role); err != nil {
			return err
		}
		logger.Printf("provisioned %s (%s)", su.email, su.role)
	}
	return nil
}
