package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-aviator/internal/model"
	"go-aviator/internal/storage/mysql"

	"github.com/patrickmn/go-cache"
)

// UserRepository resolves player identities. Lookups are cached; a player
// places at most one bet per round so repeated hits come from the bet and
// cash-out handlers of the same round.
type UserRepository struct {
	dbHandler *mysql.Handler
	cache     *cache.Cache
}

func NewUserRepository(dbHandler *mysql.Handler) *UserRepository {
	return &UserRepository{
		dbHandler: dbHandler,
		cache:     cache.New(5*time.Minute, 10*time.Minute),
	}
}

// FindUserByUUID returns nil without error when no such user exists.
func (repo *UserRepository) FindUserByUUID(userUUID string) (*model.User, error) {
	const op = "repository.UserRepository.FindUserByUUID"

	if cached, found := repo.cache.Get(userUUID); found {
		return cached.(*model.User), nil
	}

	row, err := repo.dbHandler.PrepareAndQueryRow(
		`SELECT id, uuid, nickname, created_at FROM users WHERE uuid = ?`, userUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &model.User{}

	err = row.Scan(&user.ID, &user.UUID, &user.Nickname, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	repo.cache.Set(userUUID, user, cache.DefaultExpiration)

	return user, nil
}
