package telegram

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"

	"github.com/danhigham/tgcore/internal/domain"
)

const maxDialogBatch = 100

func (b *Backend) loadChats(ctx context.Context, limit int) (domain.Result, error) {
	if limit <= 0 {
		return nil, rejected(400, "LIMIT_INVALID")
	}

	it := dialogs.NewQueryBuilder(b.api).GetDialogs().BatchSize(min(limit, maxDialogBatch)).Iter()
	ids := make([]int64, 0, limit)
	for len(ids) < limit && it.Next(ctx) {
		elem := it.Value()
		chat, ok := b.chatFromDialog(elem)
		if !ok {
			continue
		}
		b.remember(chat, elem.Peer)
		ids = append(ids, chat.ID)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialogs: %w", err)
	}

	b.logger.Debug("dialogs loaded", zap.Int("count", len(ids)))
	return domain.ChatIDs{IDs: ids}, nil
}

func (b *Backend) getChat(id int64) (domain.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chat, ok := b.chats[id]
	if !ok {
		return nil, rejected(400, "CHAT_NOT_FOUND")
	}
	return domain.ChatResult{Chat: chat.Clone()}, nil
}

func (b *Backend) chatHistory(ctx context.Context, req domain.GetChatHistory) (domain.Result, error) {
	peer := b.findPeer(req.ChatID)
	if peer == nil {
		return nil, rejected(400, "CHAT_NOT_FOUND")
	}

	result, err := b.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     peer,
		OffsetID: req.FromMessageID,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	msgs, err := b.convertHistory(result)
	if err != nil {
		return nil, err
	}
	return domain.Messages{Messages: msgs}, nil
}

func (b *Backend) sendMessage(ctx context.Context, req domain.SendMessage) (domain.Result, error) {
	peer := b.findPeer(req.ChatID)
	if peer == nil {
		return nil, rejected(400, "CHAT_NOT_FOUND")
	}

	sent, err := b.sender.To(peer).Text(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	msg := domain.Message{
		ChatID:   req.ChatID,
		Text:     req.Text,
		Markdown: req.Text,
		Date:     time.Now(),
		Out:      true,
	}
	if b.self != nil {
		msg.SenderName = formatUserName(b.self)
	}
	if s, ok := sent.(*tg.UpdateShortSentMessage); ok {
		msg.ID = s.ID
		msg.Date = time.Unix(int64(s.Date), 0)
	}

	b.emit(domain.NewMessage{Message: msg})
	if b.touch(msg) {
		last := msg
		b.emit(domain.ChatLastMessage{ChatID: msg.ChatID, Message: &last})
	}
	return domain.MessageResult{Message: msg}, nil
}

func (b *Backend) registerHandlers(d tg.UpdateDispatcher) {
	d.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		b.onMessage(e, u.Message)
		return nil
	})
	d.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		b.onMessage(e, u.Message)
		return nil
	})
	d.OnReadHistoryInbox(func(ctx context.Context, e tg.Entities, u *tg.UpdateReadHistoryInbox) error {
		b.onReadInbox(chatIDOf(u.Peer), u.StillUnreadCount)
		return nil
	})
	d.OnReadChannelInbox(func(ctx context.Context, e tg.Entities, u *tg.UpdateReadChannelInbox) error {
		b.onReadInbox(channelChatID(u.ChannelID), u.StillUnreadCount)
		return nil
	})
}

// onMessage turns an incoming message into chat notifications. A message
// in a chat not seen before announces the chat first.
func (b *Backend) onMessage(e tg.Entities, mc tg.MessageClass) {
	switch m := mc.(type) {
	case *tg.Message:
		lookup := func(id int64) (*tg.User, bool) {
			u, ok := e.Users[id]
			return u, ok
		}
		msg := b.convertMessage(m, lookup)
		if msg.ChatID == 0 {
			return
		}

		if !b.known(msg.ChatID) {
			last := msg
			chat := domain.Chat{ID: msg.ChatID, Title: titleOf(e, m.PeerID), LastMessage: &last}
			if !m.Out {
				chat.UnreadCount = 1
			}
			peer, _ := inputPeerOf(e, m.PeerID)
			b.remember(chat, peer)
			b.emit(domain.NewChat{Chat: chat.Clone()})
			b.emit(domain.NewMessage{Message: msg})
			return
		}

		b.emit(domain.NewMessage{Message: msg})
		if b.touch(msg) {
			last := msg
			b.emit(domain.ChatLastMessage{ChatID: msg.ChatID, Message: &last})
		}
		if !m.Out {
			b.emit(domain.ChatReadInbox{ChatID: msg.ChatID, UnreadCount: b.bumpUnread(msg.ChatID)})
		}

	case *tg.MessageService:
		if a, ok := m.Action.(*tg.MessageActionChatEditTitle); ok {
			id := chatIDOf(m.PeerID)
			if b.retitle(id, a.Title) {
				b.emit(domain.ChatTitle{ChatID: id, Title: a.Title})
			}
		}
	}
}

func (b *Backend) onReadInbox(id int64, unread int) {
	if id == 0 {
		return
	}
	b.mu.Lock()
	chat, ok := b.chats[id]
	if ok {
		chat.UnreadCount = unread
		b.chats[id] = chat
	}
	b.mu.Unlock()
	if ok {
		b.emit(domain.ChatReadInbox{ChatID: id, UnreadCount: unread})
	}
}

// remember caches a chat and, when known, the peer used to address it.
func (b *Backend) remember(chat domain.Chat, peer tg.InputPeerClass) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats[chat.ID] = chat.Clone()
	if peer != nil {
		b.peers[chat.ID] = peer
	}
}

func (b *Backend) known(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.chats[id]
	return ok
}

func (b *Backend) findPeer(id int64) tg.InputPeerClass {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peers[id]
}

// touch records msg as its chat's last message unless a newer one is
// already known.
func (b *Backend) touch(msg domain.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	chat, ok := b.chats[msg.ChatID]
	if !ok {
		return false
	}
	if chat.LastMessage != nil && chat.LastMessage.Date.After(msg.Date) {
		return false
	}
	last := msg
	chat.LastMessage = &last
	b.chats[msg.ChatID] = chat
	return true
}

func (b *Backend) bumpUnread(id int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	chat := b.chats[id]
	chat.UnreadCount++
	b.chats[id] = chat
	return chat.UnreadCount
}

func (b *Backend) retitle(id int64, title string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	chat, ok := b.chats[id]
	if !ok || chat.Title == title {
		return false
	}
	chat.Title = title
	b.chats[id] = chat
	return true
}
