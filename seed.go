package main

import (
	"context"

	"github.com/mtan/parley/internal/auth"
	"github.com/mtan/parley/internal/store"
)

// seedData populates two users sharing a one-to-one chat with a short
// message history, for local development.
func seedData(st store.Store, authSvc *auth.Service) error {
	ctx := context.Background()

	john, err := authSvc.Signup(ctx, "johnDoe", "password123", auth.Profile{
		Email:   "john.doe@example.com",
		Img:     "https://example.com/john.jpg",
		Bio:     "Hello, I'm John!",
		Setting: `{"theme":"dark","notifications":true}`,
	})
	if err != nil {
		return err
	}

	jane, err := authSvc.Signup(ctx, "janeDoe", "password123", auth.Profile{
		Email:   "jane.doe@example.com",
		Img:     "https://example.com/jane.jpg",
		Bio:     "Hello, I'm Jane!",
		Setting: `{"theme":"dark","notifications":true}`,
	})
	if err != nil {
		return err
	}

	chat, err := st.CreateChat(ctx, "", []uint{john.ID, jane.ID})
	if err != nil {
		return err
	}

	if _, err := st.CreateMessage(ctx, chat.ID, john.ID, "Hello, Jane!"); err != nil {
		return err
	}
	if _, err := st.CreateMessage(ctx, chat.ID, jane.ID, "Hi, John!"); err != nil {
		return err
	}
	return nil
}
