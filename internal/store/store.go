package store

import (
	"context"
	"errors"
	"time"

	"github.com/mtan/parley/internal/models"
)

var (
	// ErrDuplicateUser is returned when a username is already taken.
	ErrDuplicateUser = errors.New("username already exists")
	// ErrNotFound is returned when a chat or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotMember is returned when a sender is not a member of the chat.
	ErrNotMember = errors.New("user is not a member of the chat")
)

// ProfilePatch carries the editable profile fields. Nil fields are untouched.
type ProfilePatch struct {
	Uname   *string `json:"uname"`
	Img     *string `json:"img"`
	Bio     *string `json:"bio"`
	Setting *string `json:"setting"`
}

type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUname(ctx context.Context, uname string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserProfile(ctx context.Context, id uint, patch ProfilePatch) (*models.User, error)
	SetLastSeen(ctx context.Context, id uint, lastSeen *time.Time) error

	// Chat operations
	CreateChat(ctx context.Context, name string, memberIDs []uint) (*models.Chat, error)
	GetChat(ctx context.Context, id uint) (*models.Chat, error)
	GetChatMembers(ctx context.Context, chatID uint) ([]models.ChatMember, error)
	GetUserChats(ctx context.Context, userID uint) ([]models.Chat, error)
	IsMember(ctx context.Context, chatID, userID uint) (bool, error)

	// Message operations
	CreateMessage(ctx context.Context, chatID, senderID uint, text string) (*models.Message, error)
}
