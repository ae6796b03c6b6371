package ws

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/mtan/parley/internal/models"
	"github.com/mtan/parley/internal/store"
	"github.com/mtan/parley/internal/store/gormstore"
)

type fixture struct {
	store    store.Store
	presence *Presence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := gormstore.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return &fixture{store: st, presence: NewPresence()}
}

func (f *fixture) addUser(t *testing.T, uname string) *models.User {
	t.Helper()
	user := &models.User{Uname: uname, Pw: "hash", Img: uname + ".jpg"}
	if err := f.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", uname, err)
	}
	return user
}

// connect opens a fake session for the user: registers it in presence and
// returns the session plus the pusher recording its outbound events.
func (f *fixture) connect(user *models.User) (*session, *fakePusher) {
	p := newFakePusher("conn-" + user.Uname)
	f.presence.Attach(user.ID, p)
	return &session{store: f.store, presence: f.presence, user: user, out: p}, p
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestInitDataCounterpartDerivation(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	if _, err := f.store.CreateChat(context.Background(), "", []uint{alice.ID, bob.ID}); err != nil {
		t.Fatal(err)
	}

	sess, out := f.connect(alice)
	sess.pushInitData()

	events := out.byName("initData")
	if len(events) != 1 {
		t.Fatalf("expected 1 initData event, got %d", len(events))
	}
	summaries := events[0].Data.([]models.ChatSummary)
	if len(summaries) != 1 {
		t.Fatalf("expected 1 chat summary, got %d", len(summaries))
	}
	// One-to-one chats carry the counterpart's identity, never the
	// requester's own.
	if summaries[0].Name != "bob" || summaries[0].Img != "bob.jpg" {
		t.Errorf("expected counterpart identity, got %q/%q", summaries[0].Name, summaries[0].Img)
	}
	if summaries[0].IsGroup {
		t.Error("two-member chat reported as group")
	}
}

func TestGetChatOwnFlag(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chat, _ := f.store.CreateChat(context.Background(), "", []uint{alice.ID, bob.ID})
	f.store.CreateMessage(context.Background(), chat.ID, alice.ID, "hi bob")

	aliceSess, aliceOut := f.connect(alice)
	bobSess, bobOut := f.connect(bob)

	aliceSess.dispatch(Event{Name: "getChat", Data: raw(t, chat.ID)})
	bobSess.dispatch(Event{Name: "getChat", Data: raw(t, chat.ID)})

	aliceView := aliceOut.byName("getChat")[0].Data.(models.ChatDetail)
	bobView := bobOut.byName("getChat")[0].Data.(models.ChatDetail)

	if !aliceView.Messages[0].Own {
		t.Error("sender must see the message marked as own")
	}
	if bobView.Messages[0].Own {
		t.Error("other members must not see the message marked as own")
	}
	if aliceView.Messages[0].Text != bobView.Messages[0].Text {
		t.Error("both views must carry the same text")
	}
	if bobView.Name != "alice" {
		t.Errorf("bob's view must show alice as counterpart, got %q", bobView.Name)
	}
}

func TestGetChatNotFound(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	sess, out := f.connect(alice)
	sess.dispatch(Event{Name: "getChat", Data: raw(t, 999)})

	if len(out.byName("getChat")) != 0 {
		t.Error("missing chat must not emit a getChat event")
	}
	errs := out.byName("error")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(errs))
	}
	payload := errs[0].Data.(ErrorPayload)
	if payload.Event != "getChat" || payload.Kind != ErrKindNotFound {
		t.Errorf("unexpected error payload: %+v", payload)
	}
}

func TestSendMessageFanOut(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	carol := f.addUser(t, "carol")
	chat, _ := f.store.CreateChat(context.Background(), "trio", []uint{alice.ID, bob.ID, carol.ID})

	aliceSess, aliceOut := f.connect(alice)
	_, bobOut := f.connect(bob)
	// carol stays offline

	aliceSess.dispatch(Event{Name: "sendMessage", Data: raw(t, map[string]any{
		"chatId": chat.ID,
		"text":   "hello everyone",
	})})

	// Exactly one ack to the sender, no newMessage echo to them.
	acks := aliceOut.byName("sendMessage")
	if len(acks) != 1 {
		t.Fatalf("expected 1 sendMessage ack, got %d", len(acks))
	}
	if len(aliceOut.byName("newMessage")) != 0 {
		t.Error("sender must not receive the newMessage fan-out")
	}
	ack := acks[0].Data.(models.MessageView)
	if !ack.Own {
		t.Error("ack must be marked as own for the sender")
	}
	if ack.Sender.Uname != "alice" {
		t.Errorf("ack sender hydration wrong: %q", ack.Sender.Uname)
	}

	// Exactly one delivery to the online member.
	deliveries := bobOut.byName("newMessage")
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 newMessage for bob, got %d", len(deliveries))
	}
	got := deliveries[0].Data.(models.MessageView)
	if got.Text != "hello everyone" || got.SenderID != alice.ID {
		t.Errorf("unexpected delivery: %+v", got)
	}
	if got.Own {
		t.Error("fan-out copies must not be marked as own")
	}

	// Offline member: zero events, no error raised.
	if len(aliceOut.byName("error")) != 0 {
		t.Error("offline member must not cause an error event")
	}
}

func TestSendMessageNotMember(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	outsider := f.addUser(t, "outsider")
	chat, _ := f.store.CreateChat(context.Background(), "", []uint{alice.ID, bob.ID})

	sess, out := f.connect(outsider)
	sess.dispatch(Event{Name: "sendMessage", Data: raw(t, map[string]any{
		"chatId": chat.ID,
		"text":   "let me in",
	})})

	if len(out.byName("sendMessage")) != 0 {
		t.Error("non-member send must not be acknowledged")
	}
	if len(out.byName("error")) != 1 {
		t.Error("expected an error event for non-member send")
	}
}

func TestSendMessageThenGetChatRoundTrip(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chat, _ := f.store.CreateChat(context.Background(), "", []uint{alice.ID, bob.ID})

	aliceSess, aliceOut := f.connect(alice)
	aliceSess.dispatch(Event{Name: "sendMessage", Data: raw(t, map[string]any{
		"chatId": chat.ID,
		"text":   "round trip",
	})})
	sent := aliceOut.byName("sendMessage")[0].Data.(models.MessageView)

	aliceSess.dispatch(Event{Name: "getChat", Data: raw(t, chat.ID)})
	detail := aliceOut.byName("getChat")[0].Data.(models.ChatDetail)

	if len(detail.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(detail.Messages))
	}
	fetched := detail.Messages[0]
	if fetched.Text != sent.Text || fetched.SenderID != sent.SenderID || fetched.ID != sent.ID {
		t.Errorf("fetched message differs from sent: %+v vs %+v", fetched, sent)
	}
	if !fetched.Own {
		t.Error("sender's fetch must mark the message as own")
	}
}

func TestNewChatGroupDerivation(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	carol := f.addUser(t, "carol")

	sess, out := f.connect(alice)

	sess.dispatch(Event{Name: "newChat", Data: raw(t, map[string]any{
		"name":  "",
		"users": []uint{alice.ID, bob.ID},
	})})
	sess.dispatch(Event{Name: "newChat", Data: raw(t, map[string]any{
		"name":  "trio",
		"users": []uint{alice.ID, bob.ID, carol.ID},
	})})

	events := out.byName("newChat")
	if len(events) != 2 {
		t.Fatalf("expected 2 newChat events, got %d", len(events))
	}
	pair := events[0].Data.(*models.Chat)
	group := events[1].Data.(*models.Chat)

	if pair.IsGroup {
		t.Error("two-member chat reported as group")
	}
	if !group.IsGroup {
		t.Error("three-member chat not reported as group")
	}
	// The echo is the chat as stored; no counterpart derivation applies.
	if pair.Name != "" {
		t.Errorf("expected stored (empty) name in newChat echo, got %q", pair.Name)
	}
}

func TestNewChatStringUserIDs(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	sess, out := f.connect(alice)
	// Clients send ids as strings as often as numbers.
	sess.dispatch(Event{Name: "newChat", Data: raw(t, map[string]any{
		"users": []string{
			strconv.FormatUint(uint64(alice.ID), 10),
			strconv.FormatUint(uint64(bob.ID), 10),
		},
	})})

	if len(out.byName("newChat")) != 1 {
		t.Fatalf("expected newChat echo, errors: %+v", out.byName("error"))
	}
}

func TestSaveChangesAllowList(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	sess, out := f.connect(alice)
	sess.dispatch(Event{Name: "saveChanges", Data: raw(t, map[string]any{
		"bio": "updated bio",
		"img": "new.jpg",
		// Not an editable field; must be ignored, not applied.
		"pw": "injected",
	})})

	events := out.byName("saveChanges")
	if len(events) != 1 {
		t.Fatalf("expected 1 saveChanges event, got %d", len(events))
	}
	updated := events[0].Data.(*models.User)
	if updated.Bio != "updated bio" || updated.Img != "new.jpg" {
		t.Errorf("profile patch not applied: %+v", updated)
	}

	stored, _ := f.store.GetUserByID(context.Background(), alice.ID)
	if stored.Pw != "hash" {
		t.Error("password hash must not be editable through saveChanges")
	}
}

func TestGetUsersOmitsSecrets(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	f.addUser(t, "bob")

	sess, out := f.connect(alice)
	sess.dispatch(Event{Name: "getUsers", Data: nil})

	events := out.byName("getUsers")
	if len(events) != 1 {
		t.Fatalf("expected 1 getUsers event, got %d", len(events))
	}
	users := events[0].Data.([]models.User)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	// The wire representation never includes the hash.
	data, err := json.Marshal(users)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, u := range decoded {
		if _, ok := u["pw"]; ok {
			t.Error("serialized user leaked the password hash")
		}
	}
}

func TestGetChatUsersHydration(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	chat, _ := f.store.CreateChat(context.Background(), "", []uint{alice.ID, bob.ID})

	sess, out := f.connect(alice)
	sess.dispatch(Event{Name: "getChatUsers", Data: raw(t, chat.ID)})

	events := out.byName("getChatUsers")
	if len(events) != 1 {
		t.Fatalf("expected 1 getChatUsers event, got %d", len(events))
	}
	members := events[0].Data.([]models.MemberInfo)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].User.Uname == "" {
		t.Error("expected member profiles to be hydrated")
	}
}

func TestUnknownEvent(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	sess, out := f.connect(alice)
	sess.dispatch(Event{Name: "selfDestruct", Data: nil})

	errs := out.byName("error")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(errs))
	}
	if errs[0].Data.(ErrorPayload).Kind != ErrKindBadRequest {
		t.Errorf("unexpected error kind: %+v", errs[0].Data)
	}
}
