package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mtan/parley/internal/models"
	"github.com/mtan/parley/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements store.Store on top of a sqlite database.
type GormStore struct {
	db *gorm.DB
}

func New(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatMember{},
		&models.Message{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("uname = ?", user.Uname).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return store.ErrDuplicateUser
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *GormStore) GetUserByUname(ctx context.Context, uname string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "uname = ?", uname).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *GormStore) UpdateUserProfile(ctx context.Context, id uint, patch store.ProfilePatch) (*models.User, error) {
	updates := map[string]any{}
	if patch.Uname != nil {
		updates["uname"] = *patch.Uname
	}
	if patch.Img != nil {
		updates["img"] = *patch.Img
	}
	if patch.Bio != nil {
		updates["bio"] = *patch.Bio
	}
	if patch.Setting != nil {
		updates["setting"] = *patch.Setting
	}

	if len(updates) > 0 {
		result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, store.ErrNotFound
		}
	}
	return s.GetUserByID(ctx, id)
}

func (s *GormStore) SetLastSeen(ctx context.Context, id uint, lastSeen *time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).Update("last_seen", lastSeen)
	if result.Error != nil {
		return fmt.Errorf("failed to update last seen: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateChat(ctx context.Context, name string, memberIDs []uint) (*models.Chat, error) {
	chat := &models.Chat{
		Name:    name,
		IsGroup: len(memberIDs) > 2,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id IN ?", memberIDs).Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(memberIDs) {
			return store.ErrNotFound
		}

		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		for _, userID := range memberIDs {
			member := models.ChatMember{ChatID: chat.ID, UserID: userID, Role: "member"}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (s *GormStore) GetChat(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	err := s.db.WithContext(ctx).
		Preload("Members.User").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at ASC, messages.id ASC")
		}).
		Preload("Messages.Sender").
		First(&chat, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return &chat, nil
}

func (s *GormStore) GetChatMembers(ctx context.Context, chatID uint) ([]models.ChatMember, error) {
	var members []models.ChatMember
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("chat_id = ?", chatID).
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chat members: %w", err)
	}
	return members, nil
}

func (s *GormStore) GetUserChats(ctx context.Context, userID uint) ([]models.Chat, error) {
	var memberships []models.ChatMember
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []models.Chat{}, nil
	}

	chatIDs := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		chatIDs = append(chatIDs, m.ChatID)
	}

	var chats []models.Chat
	err := s.db.WithContext(ctx).
		Preload("Members.User").
		Where("id IN ?", chatIDs).
		Order("id").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}
	return chats, nil
}

func (s *GormStore) IsMember(ctx context.Context, chatID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) CreateMessage(ctx context.Context, chatID, senderID uint, text string) (*models.Message, error) {
	isMember, err := s.IsMember(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, store.ErrNotMember
	}

	msg := &models.Message{ChatID: chatID, SenderID: senderID, Text: text}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if err := s.db.WithContext(ctx).Preload("Sender").First(msg, msg.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload message: %w", err)
	}
	return msg, nil
}
