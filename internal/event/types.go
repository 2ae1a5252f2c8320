// Package event models one inbound LINE webhook delivery.
package event

// Type is the webhook event type.
type Type string

const (
	TypeMessage      Type = "message"
	TypeFollow       Type = "follow"
	TypeUnfollow     Type = "unfollow"
	TypeJoin         Type = "join"
	TypeLeave        Type = "leave"
	TypePostback     Type = "postback"
	TypeBeacon       Type = "beacon"
	TypeAccountLink  Type = "accountLink"
	TypeMemberJoined Type = "memberJoined"
	TypeMemberLeft   Type = "memberLeft"
)

// Known reports whether t is one of the event types above.
func (t Type) Known() bool {
	switch t {
	case TypeMessage, TypeFollow, TypeUnfollow, TypeJoin, TypeLeave,
		TypePostback, TypeBeacon, TypeAccountLink, TypeMemberJoined, TypeMemberLeft:
		return true
	}
	return false
}

// SourceType is the conversational scope an event originates from.
type SourceType string

const (
	SourceUser  SourceType = "user"
	SourceGroup SourceType = "group"
	SourceRoom  SourceType = "room"
)

// Known reports whether s is user, group or room.
func (s SourceType) Known() bool {
	return s == SourceUser || s == SourceGroup || s == SourceRoom
}

// Callback is the decoded body of one webhook delivery.
type Callback struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event. Only the payload matching Type is set.
type Event struct {
	Type            Type             `json:"type"`
	Mode            string           `json:"mode,omitempty"`
	Timestamp       int64            `json:"timestamp"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	WebhookEventID  string           `json:"webhookEventId,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	Source          Source           `json:"source"`

	Message  *Message  `json:"message,omitempty"`
	Postback *Postback `json:"postback,omitempty"`
	Beacon   *Beacon   `json:"beacon,omitempty"`
	Link     *Link     `json:"link,omitempty"`
	Joined   *Members  `json:"joined,omitempty"`
	Left     *Members  `json:"left,omitempty"`
}

// DeliveryContext tells whether LINE is re-sending an event.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// IsRedelivery reports whether the event was re-sent by the platform.
func (e Event) IsRedelivery() bool {
	return e.DeliveryContext != nil && e.DeliveryContext.IsRedelivery
}

// Source identifies where an event came from. In group and room chats
// UserID may also carry the speaking member.
type Source struct {
	Type    SourceType `json:"type"`
	UserID  string     `json:"userId,omitempty"`
	GroupID string     `json:"groupId,omitempty"`
	RoomID  string     `json:"roomId,omitempty"`
}

// ChatID returns the identifier matching the source variant, or "" for an
// unknown variant.
func (s Source) ChatID() string {
	switch s.Type {
	case SourceUser:
		return s.UserID
	case SourceGroup:
		return s.GroupID
	case SourceRoom:
		return s.RoomID
	default:
		return ""
	}
}

// Message is the content of a message event.
type Message struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// TextContent returns the message text when this is a text message.
// A missing type with a non-empty text counts as text.
func (m *Message) TextContent() (string, bool) {
	if m == nil || m.Text == "" {
		return "", false
	}
	if m.Type != "" && m.Type != "text" {
		return "", false
	}
	return m.Text, true
}

// Postback is the payload of a postback event.
type Postback struct {
	Data   string            `json:"data"`
	Params map[string]string `json:"params,omitempty"`
}

// Beacon is the payload of a beacon event.
type Beacon struct {
	HWID string `json:"hwid"`
	Type string `json:"type"`
	DM   string `json:"dm,omitempty"`
}

// Link is the payload of an account link event.
type Link struct {
	Result string `json:"result"`
	Nonce  string `json:"nonce"`
}

// Members lists the users of a memberJoined or memberLeft event.
type Members struct {
	Members []Source `json:"members"`
}

// Count returns the number of members, treating nil as empty.
func (m *Members) Count() int {
	if m == nil {
		return 0
	}
	return len(m.Members)
}
