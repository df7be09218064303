package database

import (
	"github.com/trezcool/darasa/core/user"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) load() ([]user.User, error) {
	var users []user.User
	err := repo.db.getCollection(keyUsers, &users)
	return users, err
}

func (repo *userRepository) CheckEmailUniqueness(email string, excludedUsers ...user.User) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.load()
	if err != nil {
		return err
	}
	for _, usr := range users {
		if usr.Email == email && !isExcluded(usr.ID, excludedUsers) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.load()
	if err != nil {
		return user.User{}, err
	}
	users = append(users, usr)
	if err = repo.db.setCollection(keyUsers, users); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.load()
}

func (repo *userRepository) QueryUsersByRole(role string) ([]user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.load()
	if err != nil {
		return nil, err
	}
	matches := make([]user.User, 0, len(users))
	for _, usr := range users {
		if usr.Role == role {
			matches = append(matches, usr)
		}
	}
	return matches, nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.load()
	if err != nil {
		return user.User{}, err
	}
	for _, usr := range users {
		if usr.ID == id {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.load()
	if err != nil {
		return user.User{}, err
	}
	for _, usr := range users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.load()
	if err != nil {
		return user.User{}, err
	}
	for i := range users {
		if users[i].ID == usr.ID {
			users[i] = usr
			if err = repo.db.setCollection(keyUsers, users); err != nil {
				return user.User{}, err
			}
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) DeleteUsersByID(ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.load()
	if err != nil {
		return err
	}
	kept := users[:0]
	for _, usr := range users {
		if !containsID(ids, usr.ID) {
			kept = append(kept, usr)
		}
	}
	return repo.db.setCollection(keyUsers, kept)
}

func isExcluded(id string, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == id {
			return true
		}
	}
	return false
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
