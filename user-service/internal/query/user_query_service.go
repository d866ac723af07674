package query

import (
	"context"

	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/joelsaunders/bilbo/user-service/internal/repository"
)

// UserQueryService reads user views from the Redis cache (with a Postgres fallback).
type UserQueryService struct {
	readRepo *repository.UserReadRepository
}

func NewUserQueryService(readRepo *repository.UserReadRepository) *UserQueryService {
	return &UserQueryService{readRepo: readRepo}
}

func (s *UserQueryService) GetUser(q cqrs.GetUserQuery) (*models.UserView, error) {
	return s.readRepo.GetByID(context.Background(), q.UserID)
}
