package telegram

import (
	"fmt"
	"time"

	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"

	"github.com/danhigham/tgcore/internal/domain"
)

// channelBase keeps channel ids apart from user and basic group ids in the
// single chat id space.
const channelBase = -1000000000000

func userChatID(id int64) int64    { return id }
func groupChatID(id int64) int64   { return -id }
func channelChatID(id int64) int64 { return channelBase - id }

// chatIDOf maps a peer onto a chat id. It returns 0 for unknown peers.
func chatIDOf(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return userChatID(p.UserID)
	case *tg.PeerChat:
		return groupChatID(p.ChatID)
	case *tg.PeerChannel:
		return channelChatID(p.ChannelID)
	default:
		return 0
	}
}

func chatIDOfInput(p tg.InputPeerClass) int64 {
	switch p := p.(type) {
	case *tg.InputPeerUser:
		return userChatID(p.UserID)
	case *tg.InputPeerChat:
		return groupChatID(p.ChatID)
	case *tg.InputPeerChannel:
		return channelChatID(p.ChannelID)
	default:
		return 0
	}
}

// inputPeerOf builds an addressable peer from update entities.
func inputPeerOf(e tg.Entities, p tg.PeerClass) (tg.InputPeerClass, bool) {
	switch p := p.(type) {
	case *tg.PeerUser:
		if u, ok := e.Users[p.UserID]; ok {
			return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, true
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}, true
	case *tg.PeerChannel:
		if ch, ok := e.Channels[p.ChannelID]; ok {
			return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, true
		}
	}
	return nil, false
}

// titleOf names a peer from update entities.
func titleOf(e tg.Entities, p tg.PeerClass) string {
	switch p := p.(type) {
	case *tg.PeerUser:
		if u, ok := e.Users[p.UserID]; ok {
			return formatUserName(u)
		}
	case *tg.PeerChat:
		if ch, ok := e.Chats[p.ChatID]; ok {
			return ch.Title
		}
	case *tg.PeerChannel:
		if ch, ok := e.Channels[p.ChannelID]; ok {
			return ch.Title
		}
	}
	return "Unknown"
}

// dialogTitle names a dialog from its entities.
func dialogTitle(elem dialogs.Elem) string {
	if elem.Dialog == nil {
		return "Unknown"
	}
	switch p := elem.Dialog.GetPeer().(type) {
	case *tg.PeerUser:
		if u, ok := elem.Entities.User(p.UserID); ok {
			return formatUserName(u)
		}
	case *tg.PeerChat:
		if ch, ok := elem.Entities.Chat(p.ChatID); ok {
			return ch.Title
		}
	case *tg.PeerChannel:
		if ch, ok := elem.Entities.Channel(p.ChannelID); ok {
			return ch.Title
		}
	}
	return "Unknown"
}

// chatFromDialog converts one dialog list entry.
func (b *Backend) chatFromDialog(elem dialogs.Elem) (domain.Chat, bool) {
	id := chatIDOfInput(elem.Peer)
	if id == 0 {
		return domain.Chat{}, false
	}
	chat := domain.Chat{ID: id, Title: dialogTitle(elem)}
	if dlg, ok := elem.Dialog.(*tg.Dialog); ok {
		chat.UnreadCount = dlg.UnreadCount
	}
	if msg, ok := elem.Last.(*tg.Message); ok {
		m := b.convertMessage(msg, elem.Entities.User)
		chat.LastMessage = &m
	}
	return chat, true
}

// convertMessage converts a tg.Message. users resolves sender names.
func (b *Backend) convertMessage(msg *tg.Message, users func(int64) (*tg.User, bool)) domain.Message {
	var senderName string
	if p, ok := msg.FromID.(*tg.PeerUser); ok {
		if u, ok := users(p.UserID); ok {
			senderName = formatUserName(u)
		}
	}

	// In private chats FromID is often unset; the peer is the sender.
	if senderName == "" && !msg.Out {
		if p, ok := msg.PeerID.(*tg.PeerUser); ok {
			if u, ok := users(p.UserID); ok {
				senderName = formatUserName(u)
			}
		}
	}
	if senderName == "" && msg.Out && b.self != nil {
		senderName = formatUserName(b.self)
	}

	return domain.Message{
		ID:         msg.ID,
		ChatID:     chatIDOf(msg.PeerID),
		SenderName: senderName,
		Text:       msg.Message,
		Markdown:   Markdown(msg.Message, msg.Entities),
		Date:       time.Unix(int64(msg.Date), 0),
		Out:        msg.Out,
	}
}

// convertHistory extracts messages from a history response, oldest first.
func (b *Backend) convertHistory(result tg.MessagesMessagesClass) ([]domain.Message, error) {
	var (
		messages []tg.MessageClass
		users    []tg.UserClass
	)
	switch r := result.(type) {
	case *tg.MessagesMessages:
		messages, users = r.Messages, r.Users
	case *tg.MessagesMessagesSlice:
		messages, users = r.Messages, r.Users
	case *tg.MessagesChannelMessages:
		messages, users = r.Messages, r.Users
	default:
		return nil, fmt.Errorf("unexpected messages type: %T", result)
	}

	byID := usersToMap(users)
	lookup := func(id int64) (*tg.User, bool) {
		u, ok := byID[id]
		return u, ok
	}

	out := make([]domain.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg, ok := messages[i].(*tg.Message)
		if !ok {
			continue
		}
		out = append(out, b.convertMessage(msg, lookup))
	}
	return out, nil
}

func formatUserName(u *tg.User) string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return "Unknown"
	}
}

func usersToMap(users []tg.UserClass) map[int64]*tg.User {
	m := make(map[int64]*tg.User, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			m[user.ID] = user
		}
	}
	return m
}
