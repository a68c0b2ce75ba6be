package storage

import "errors"

var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrFriendshipNotFound   = errors.New("friendship not found")
	ErrFriendshipExists     = errors.New("friendship already exists")
)
