package models

import "time"

type User struct {
	ID       uint       `json:"id" gorm:"primaryKey"`
	Uname    string     `json:"uname" gorm:"uniqueIndex;not null"`
	Pw       string     `json:"-" gorm:"not null"`
	Email    string     `json:"email"`
	Img      string     `json:"img"`
	Bio      string     `json:"bio"`
	Setting  string     `json:"setting"`
	LastSeen *time.Time `json:"lastSeen"` // nil while online

	Chats []ChatMember `json:"-" gorm:"foreignKey:UserID"`
}

type Chat struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Name    string `json:"name"`
	Img     string `json:"img"`
	IsGroup bool   `json:"isGroup"`

	Members  []ChatMember `json:"-" gorm:"foreignKey:ChatID"`
	Messages []Message    `json:"-" gorm:"foreignKey:ChatID"`
}

// ChatMember links a user to a chat. Membership is fixed at chat creation.
type ChatMember struct {
	ChatID uint   `json:"chatId" gorm:"primaryKey;autoIncrement:false"`
	UserID uint   `json:"userId" gorm:"primaryKey;autoIncrement:false"`
	Role   string `json:"role"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatID    uint      `json:"chatId" gorm:"not null;index"`
	SenderID  uint      `json:"senderId" gorm:"not null"`
	Text      string    `json:"text" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`

	Sender User `json:"-" gorm:"foreignKey:SenderID"`
}

// UserInfo is the public slice of a user embedded in membership listings.
type UserInfo struct {
	ID       uint       `json:"id"`
	Uname    string     `json:"uname"`
	Img      string     `json:"img"`
	LastSeen *time.Time `json:"lastSeen"`
}

// SenderInfo is the public slice of a user attached to each message.
type SenderInfo struct {
	ID    uint   `json:"id"`
	Uname string `json:"uname"`
	Img   string `json:"img"`
}

// MemberInfo is one hydrated membership row.
type MemberInfo struct {
	ChatID uint     `json:"chatId"`
	UserID uint     `json:"userId"`
	Role   string   `json:"role"`
	User   UserInfo `json:"user"`
}

// MessageView is a message hydrated for the wire. Own is a read-side flag
// marking messages authored by the requesting user; it is never persisted.
type MessageView struct {
	ID        uint       `json:"id"`
	ChatID    uint       `json:"chatId"`
	SenderID  uint       `json:"senderId"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	Sender    SenderInfo `json:"sender"`
	Own       bool       `json:"own"`
}

// ChatSummary is one entry of the initial chat list. For one-to-one chats
// Name, Img and LastSeen are derived from the counterpart member.
type ChatSummary struct {
	ID       uint       `json:"id"`
	Name     string     `json:"name"`
	Img      string     `json:"img"`
	IsGroup  bool       `json:"isGroup"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// ChatDetail is a fully hydrated chat as returned by getChat.
type ChatDetail struct {
	ID       uint          `json:"id"`
	Name     string        `json:"name"`
	Img      string        `json:"img"`
	IsGroup  bool          `json:"isGroup"`
	LastSeen *time.Time    `json:"lastSeen,omitempty"`
	Messages []MessageView `json:"messages"`
	Members  []MemberInfo  `json:"users"`
}

func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Uname: u.Uname, Img: u.Img, LastSeen: u.LastSeen}
}

func (u *User) Sender() SenderInfo {
	return SenderInfo{ID: u.ID, Uname: u.Uname, Img: u.Img}
}

// View hydrates the message for the given viewer.
func (m *Message) View(viewerID uint) MessageView {
	return MessageView{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		Sender:    m.Sender.Sender(),
		Own:       m.SenderID == viewerID,
	}
}

// Summary derives the chat-list entry for the given viewer. One-to-one chats
// take their display identity from the other member.
func (c *Chat) Summary(viewerID uint) ChatSummary {
	s := ChatSummary{ID: c.ID, Name: c.Name, Img: c.Img, IsGroup: c.IsGroup}
	if c.IsGroup {
		return s
	}
	for i := range c.Members {
		if c.Members[i].UserID != viewerID {
			other := &c.Members[i].User
			s.Name = other.Uname
			s.Img = other.Img
			s.LastSeen = other.LastSeen
			break
		}
	}
	return s
}

// Detail hydrates the full chat for the given viewer.
func (c *Chat) Detail(viewerID uint) ChatDetail {
	sum := c.Summary(viewerID)
	d := ChatDetail{
		ID:       sum.ID,
		Name:     sum.Name,
		Img:      sum.Img,
		IsGroup:  sum.IsGroup,
		LastSeen: sum.LastSeen,
		Messages: make([]MessageView, 0, len(c.Messages)),
		Members:  make([]MemberInfo, 0, len(c.Members)),
	}
	for i := range c.Messages {
		d.Messages = append(d.Messages, c.Messages[i].View(viewerID))
	}
	for i := range c.Members {
		m := &c.Members[i]
		d.Members = append(d.Members, MemberInfo{
			ChatID: m.ChatID,
			UserID: m.UserID,
			Role:   m.Role,
			User:   m.User.Info(),
		})
	}
	return d
}
