package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/mtan/parley/internal/models"
	"github.com/mtan/parley/internal/store"
	log "github.com/sirupsen/logrus"
)

// flexID accepts a JSON number or a numeric string, since clients send
// chat and user ids in both shapes.
type flexID uint

func (f *flexID) UnmarshalJSON(data []byte) error {
	var n uint
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n64, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(n64)
	return nil
}

// session handles the events of one open connection. Handlers run
// sequentially per connection (driven by the read pump) and are
// independent: one failing handler emits an error event and leaves the
// connection open.
type session struct {
	store    store.Store
	presence *Presence
	user     *models.User
	out      Pusher
}

func (s *session) dispatch(evt Event) {
	switch evt.Name {
	case "getChat":
		s.getChat(evt.Data)
	case "getChatUsers":
		s.getChatUsers(evt.Data)
	case "getUsers":
		s.getUsers()
	case "sendMessage":
		s.sendMessage(evt.Data)
	case "newChat":
		s.newChat(evt.Data)
	case "saveChanges":
		s.saveChanges(evt.Data)
	default:
		s.fail(evt.Name, ErrKindBadRequest, "unknown event")
	}
}

// pushInitData sends the caller's chat list. Group chats show their stored
// name and image; one-to-one chats show the counterpart's.
func (s *session) pushInitData() {
	chats, err := s.store.GetUserChats(context.Background(), s.user.ID)
	if err != nil {
		log.WithField("user", s.user.ID).WithError(err).Error("failed to load chat list")
		s.fail("initData", ErrKindInternal, "could not load chats")
		return
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for i := range chats {
		summaries = append(summaries, chats[i].Summary(s.user.ID))
	}
	s.emit("initData", summaries)
}

func (s *session) getChat(data json.RawMessage) {
	chatID, ok := s.decodeChatID("getChat", data)
	if !ok {
		return
	}

	chat, err := s.store.GetChat(context.Background(), chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.fail("getChat", ErrKindNotFound, "chat not found")
		} else {
			log.WithField("user", s.user.ID).WithError(err).Error("getChat failed")
			s.fail("getChat", ErrKindInternal, "could not load chat")
		}
		return
	}

	s.emit("getChat", chat.Detail(s.user.ID))
}

func (s *session) getChatUsers(data json.RawMessage) {
	chatID, ok := s.decodeChatID("getChatUsers", data)
	if !ok {
		return
	}

	members, err := s.store.GetChatMembers(context.Background(), chatID)
	if err != nil {
		log.WithField("user", s.user.ID).WithError(err).Error("getChatUsers failed")
		s.fail("getChatUsers", ErrKindInternal, "could not load chat members")
		return
	}

	infos := make([]models.MemberInfo, 0, len(members))
	for i := range members {
		m := &members[i]
		infos = append(infos, models.MemberInfo{
			ChatID: m.ChatID,
			UserID: m.UserID,
			Role:   m.Role,
			User:   m.User.Info(),
		})
	}
	s.emit("getChatUsers", infos)
}

func (s *session) getUsers() {
	users, err := s.store.ListUsers(context.Background())
	if err != nil {
		log.WithField("user", s.user.ID).WithError(err).Error("getUsers failed")
		s.fail("getUsers", ErrKindInternal, "could not load users")
		return
	}
	// Password hashes are stripped by the model's json tags; connection
	// handles live only in the presence registry.
	s.emit("getUsers", users)
}

func (s *session) sendMessage(data json.RawMessage) {
	var req struct {
		ChatID flexID `json:"chatId"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.Text == "" {
		s.fail("sendMessage", ErrKindBadRequest, "chatId and text are required")
		return
	}

	msg, err := s.store.CreateMessage(context.Background(), uint(req.ChatID), s.user.ID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotMember):
			s.fail("sendMessage", ErrKindBadRequest, "not a member of this chat")
		case errors.Is(err, store.ErrNotFound):
			s.fail("sendMessage", ErrKindNotFound, "chat not found")
		default:
			log.WithField("user", s.user.ID).WithError(err).Error("sendMessage failed")
			s.fail("sendMessage", ErrKindInternal, "could not send message")
		}
		return
	}

	members, err := s.store.GetChatMembers(context.Background(), msg.ChatID)
	if err != nil {
		log.WithField("chat", msg.ChatID).WithError(err).Error("fan-out member lookup failed")
	} else {
		// Fan out to every other member currently online. Offline members
		// are skipped; there is no queue.
		view := msg.View(0)
		for _, member := range members {
			if member.UserID == s.user.ID {
				continue
			}
			s.presence.Send(member.UserID, "newMessage", view)
		}
	}

	s.emit("sendMessage", msg.View(s.user.ID))
}

func (s *session) newChat(data json.RawMessage) {
	var req struct {
		Name  string   `json:"name"`
		Users []flexID `json:"users"`
	}
	if err := json.Unmarshal(data, &req); err != nil || len(req.Users) == 0 {
		s.fail("newChat", ErrKindBadRequest, "users are required")
		return
	}

	memberIDs := make([]uint, 0, len(req.Users))
	for _, id := range req.Users {
		memberIDs = append(memberIDs, uint(id))
	}

	chat, err := s.store.CreateChat(context.Background(), req.Name, memberIDs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.fail("newChat", ErrKindNotFound, "unknown user in member list")
		} else {
			log.WithField("user", s.user.ID).WithError(err).Error("newChat failed")
			s.fail("newChat", ErrKindInternal, "could not create chat")
		}
		return
	}

	// The created chat is echoed as stored, without counterpart
	// derivation. getChat applies the derivation on the next read.
	s.emit("newChat", chat)
}

func (s *session) saveChanges(data json.RawMessage) {
	// Only the fixed profile fields are editable; anything else in the
	// patch is ignored.
	var patch store.ProfilePatch
	if err := json.Unmarshal(data, &patch); err != nil {
		s.fail("saveChanges", ErrKindBadRequest, "invalid profile patch")
		return
	}

	user, err := s.store.UpdateUserProfile(context.Background(), s.user.ID, patch)
	if err != nil {
		log.WithField("user", s.user.ID).WithError(err).Error("saveChanges failed")
		s.fail("saveChanges", ErrKindInternal, "could not save changes")
		return
	}

	s.user = user
	s.emit("saveChanges", user)
}

func (s *session) decodeChatID(event string, data json.RawMessage) (uint, bool) {
	var id flexID
	if err := json.Unmarshal(data, &id); err == nil {
		return uint(id), true
	}
	var req struct {
		ChatID flexID `json:"chatId"`
	}
	if err := json.Unmarshal(data, &req); err == nil && req.ChatID != 0 {
		return uint(req.ChatID), true
	}
	s.fail(event, ErrKindBadRequest, "chatId is required")
	return 0, false
}

func (s *session) emit(event string, data any) {
	if err := s.out.Push(event, data); err != nil {
		log.WithFields(log.Fields{"user": s.user.ID, "event": event}).WithError(err).Debug("push failed")
	}
}

func (s *session) fail(event, kind, message string) {
	s.emit("error", ErrorPayload{Event: event, Kind: kind, Message: message})
}
