package storage

import (
	"fmt"
	"strings"
	"time"

	"staychat/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketMessages      = []byte("messages")
	bucketAgents        = []byte("agents")
	bucketSubscriptions = []byte("push_subscriptions")
	bucketAvatars       = []byte("avatars")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMessages, bucketAgents, bucketSubscriptions, bucketAvatars} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// AppendMessage stores a message under the next sequence number.
// Sequence order is the durable display order; messages are never
// reordered by timestamp afterwards.
func (s *BboltStorage) AppendMessage(message models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate message seq: %w", err)
		}

		dbMessage := DBMessage{
			Seq:        seq,
			ID:         message.ID,
			Timestamp:  message.Timestamp,
			ThreadID:   message.Thread(),
			SenderID:   message.SenderID,
			ReceiverID: message.ReceiverID,
			Content:    message.Content,
			MsgType:    message.Type,
			IsRead:     message.IsRead,
		}
		if message.Meta != nil {
			dbMessage.DisplayName = message.Meta.DisplayName
			dbMessage.AvatarURL = message.Meta.AvatarURL
			dbMessage.IsStaff = message.Meta.IsStaff
		}

		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return b.Put(dbMessage.Key(), data)
	})
}

// ListMessagesFor returns up to limit most recent messages the user
// participates in, oldest first.
func (s *BboltStorage) ListMessagesFor(userID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(messages) < limit); k, v = c.Prev() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbMsg.SenderID != userID && dbMsg.ReceiverID != userID {
				continue
			}
			messages = append(messages, toModel(dbMsg))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Cursor walked newest-first; flip back to display order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkAllRead flips IsRead on every unread message addressed to the
// user and reports how many were updated.
func (s *BboltStorage) MarkAllRead(userID string) (int, error) {
	updated := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbMsg.ReceiverID != userID || dbMsg.IsRead {
				continue
			}
			dbMsg.IsRead = true
			data, err := dbMsg.MarshalBinary()
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return updated, err
}

// UpsertAgent saves a support agent to the roster.
func (s *BboltStorage) UpsertAgent(agent models.SupportAgent) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		dbAgent := DBAgent{
			ID:        agent.ID,
			Name:      agent.Name,
			AvatarURL: agent.AvatarURL,
			Title:     agent.Title,
			AgencyID:  agent.AgencyID,
		}
		data, err := dbAgent.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbAgent.Key(), data)
	})
}

// ListAgents returns the full roster. Presence is a live concern of the
// hub, so everyone comes back offline here.
func (s *BboltStorage) ListAgents() ([]models.SupportAgent, error) {
	var agents []models.SupportAgent
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		return b.ForEach(func(k, v []byte) error {
			var dbAgent DBAgent
			if err := dbAgent.UnmarshalBinary(v); err != nil {
				return err
			}
			agents = append(agents, models.SupportAgent{
				ID:        dbAgent.ID,
				Name:      dbAgent.Name,
				AvatarURL: dbAgent.AvatarURL,
				Status:    models.AgentStatusOffline,
				Title:     dbAgent.Title,
				AgencyID:  dbAgent.AgencyID,
			})
			return nil
		})
	})
	return agents, err
}

func (s *BboltStorage) GetAgent(id string) (models.SupportAgent, error) {
	var agent models.SupportAgent
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAgents).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbAgent DBAgent
		if err := dbAgent.UnmarshalBinary(data); err != nil {
			return err
		}
		agent = models.SupportAgent{
			ID:        dbAgent.ID,
			Name:      dbAgent.Name,
			AvatarURL: dbAgent.AvatarURL,
			Status:    models.AgentStatusOffline,
			Title:     dbAgent.Title,
			AgencyID:  dbAgent.AgencyID,
		}
		return nil
	})
	return agent, err
}

// UpsertSubscription stores a raw web-push subscription for the user.
func (s *BboltStorage) UpsertSubscription(userID, endpoint string, raw []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubscriptions)
		dbSub := DBSubscription{
			UserID:   userID,
			Endpoint: endpoint,
			Raw:      raw,
		}
		data, err := dbSub.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbSub.Key(), data)
	})
}

// ListSubscriptions returns the raw subscriptions registered for the user.
func (s *BboltStorage) ListSubscriptions(userID string) ([][]byte, error) {
	var subs [][]byte
	prefix := []byte(userID + "\x00")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketSubscriptions).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var dbSub DBSubscription
			if err := dbSub.UnmarshalBinary(v); err != nil {
				return err
			}
			subs = append(subs, dbSub.Raw)
		}
		return nil
	})
	return subs, err
}

func (s *BboltStorage) SaveAvatar(agentID, mimeType string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAvatars)
		dbAvatar := DBAvatar{
			AgentID:  agentID,
			MimeType: mimeType,
			Data:     data,
		}
		encoded, err := dbAvatar.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbAvatar.Key(), encoded)
	})
}

func (s *BboltStorage) GetAvatar(agentID string) (DBAvatar, error) {
	var avatar DBAvatar
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAvatars).Get([]byte(agentID))
		if data == nil {
			return models.ErrNotFound
		}
		return avatar.UnmarshalBinary(data)
	})
	return avatar, err
}

func toModel(dbMsg DBMessage) models.Message {
	msg := models.Message{
		ID:         dbMsg.ID,
		Content:    dbMsg.Content,
		SenderID:   dbMsg.SenderID,
		ReceiverID: dbMsg.ReceiverID,
		ThreadID:   dbMsg.ThreadID,
		Type:       dbMsg.MsgType,
		IsRead:     dbMsg.IsRead,
		Timestamp:  dbMsg.Timestamp,
	}
	if dbMsg.DisplayName != "" || dbMsg.AvatarURL != "" || dbMsg.IsStaff {
		msg.Meta = &models.MessageMeta{
			DisplayName: dbMsg.DisplayName,
			AvatarURL:   dbMsg.AvatarURL,
			IsStaff:     dbMsg.IsStaff,
		}
	}
	return msg
}
