package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinetic-labs/courier-go/courier"
)

// User is the wire shape of a user resource.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateUserInput is the payload for Create.
type CreateUserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UsersService wraps the user endpoints.
type UsersService struct {
	base   *courier.Requester
	cached *courier.CacheRequester
	idem   *courier.CacheRequester
	log    zerolog.Logger
}

func newUsersService(reg *courier.Registry, log zerolog.Logger, cacheOpts []courier.CacheOption) *UsersService {
	return &UsersService{
		base:   reg.Requester(),
		cached: courier.NewCacheRequester(reg, cacheOpts...),
		idem:   courier.NewIdempotentRequester(reg),
		log:    log,
	}
}

// List fetches all users, served from cache within the TTL.
func (s *UsersService) List(ctx context.Context) ([]User, error) {
	resp, err := s.cached.Get(ctx, "/users", nil)
	if err != nil {
		s.log.Error().Err(err).Msg("list users failed")
		return nil, err
	}

	var users []User
	if err := resp.Decode(&users); err != nil {
		s.log.Error().Err(err).Msg("decode users failed")
		return nil, err
	}
	return users, nil
}

// Get fetches a single user by id.
func (s *UsersService) Get(ctx context.Context, id string) (*User, error) {
	resp, err := s.base.Get(ctx, "/users/"+id, nil)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", id).Msg("get user failed")
		return nil, err
	}

	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create registers a new user. Identical resubmissions within the
// memoization window replay the first result.
func (s *UsersService) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	resp, err := s.idem.Post(ctx, "/users", in, nil)
	if err != nil {
		s.log.Error().Err(err).Str("email", in.Email).Msg("create user failed")
		return nil, err
	}

	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes a user.
func (s *UsersService) Delete(ctx context.Context, id string) error {
	if _, err := s.base.Delete(ctx, "/users/"+id, nil); err != nil {
		s.log.Error().Err(err).Str("user_id", id).Msg("delete user failed")
		return err
	}
	return nil
}
