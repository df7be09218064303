package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, role string) error {
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	var valid bool
	for _, r := range user.AllRoles {
		if r == role {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown role %q", role)
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUserByEmail(email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: now,
		}
		usr.Name = name
		usr.Role = role
		usr.UpdatedAt = now
		_, err = cli.usrRepo.CreateUser(usr)
		return err
	}

	usr.Name = name
	usr.Role = role
	usr.UpdatedAt = now
	_, err = cli.usrRepo.UpdateUser(usr)
	return err
}

func (cli *commandLine) listUsers() error {
	users, err := cli.usrRepo.QueryAllUsers()
	if err != nil {
		return err
	}
	for _, usr := range users {
		fmt.Printf("%-36s  %-10s  %-30s  %s\n", usr.ID, usr.Role, usr.Email, usr.Name)
	}
	return nil
}
