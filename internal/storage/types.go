package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBMessage struct {
	Seq         uint64 `msgpack:"seq"`
	ID          string `msgpack:"id"`
	Timestamp   int64  `msgpack:"timestamp"`
	ThreadID    string `msgpack:"threadId"`
	SenderID    string `msgpack:"senderId"`
	ReceiverID  string `msgpack:"receiverId"`
	Content     string `msgpack:"content"`
	MsgType     string `msgpack:"msgType"`
	IsRead      bool   `msgpack:"isRead"`
	DisplayName string `msgpack:"displayName,omitempty"`
	AvatarURL   string `msgpack:"avatarUrl,omitempty"`
	IsStaff     bool   `msgpack:"isStaff,omitempty"`
}

func (m *DBMessage) Key() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, m.Seq)
	return key
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

type DBAgent struct {
	ID        string `msgpack:"id"`
	Name      string `msgpack:"name"`
	AvatarURL string `msgpack:"avatarUrl"`
	Title     string `msgpack:"title"`
	AgencyID  string `msgpack:"agencyId"`
}

func (a *DBAgent) Key() []byte {
	return []byte(a.ID)
}

func (a *DBAgent) MarshalBinary() (data []byte, err error) {
	type alias DBAgent
	return msgpack.Marshal((*alias)(a))
}

func (a *DBAgent) UnmarshalBinary(data []byte) error {
	type alias DBAgent
	return msgpack.Unmarshal(data, (*alias)(a))
}

// DBSubscription stores a web-push subscription as the browser handed
// it over, keyed by endpoint so re-subscribes overwrite in place.
type DBSubscription struct {
	UserID   string `msgpack:"userId"`
	Endpoint string `msgpack:"endpoint"`
	Raw      []byte `msgpack:"raw"`
}

func (s *DBSubscription) Key() []byte {
	return []byte(s.UserID + "\x00" + s.Endpoint)
}

func (s *DBSubscription) MarshalBinary() (data []byte, err error) {
	type alias DBSubscription
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSubscription) UnmarshalBinary(data []byte) error {
	type alias DBSubscription
	return msgpack.Unmarshal(data, (*alias)(s))
}

type DBAvatar struct {
	AgentID  string `msgpack:"agentId"`
	MimeType string `msgpack:"mimeType"`
	Data     []byte `msgpack:"data"`
}

func (a *DBAvatar) Key() []byte {
	return []byte(a.AgentID)
}

func (a *DBAvatar) MarshalBinary() (data []byte, err error) {
	type alias DBAvatar
	return msgpack.Marshal((*alias)(a))
}

func (a *DBAvatar) UnmarshalBinary(data []byte) error {
	type alias DBAvatar
	return msgpack.Unmarshal(data, (*alias)(a))
}
