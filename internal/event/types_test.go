package event

import "testing"

func TestSource_ChatID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  Source
		want string
	}{
		{"user", Source{Type: SourceUser, UserID: "U1"}, "U1"},
		{"group with speaker", Source{Type: SourceGroup, GroupID: "C1", UserID: "U1"}, "C1"},
		{"room", Source{Type: SourceRoom, RoomID: "R1"}, "R1"},
		{"unknown", Source{Type: "channel", UserID: "U1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.src.ChatID(); got != tt.want {
				t.Errorf("ChatID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_TextContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		msg    *Message
		want   string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"typed text", &Message{Type: "text", Text: "hi"}, "hi", true},
		{"untyped text", &Message{Text: "hi"}, "hi", true},
		{"sticker", &Message{Type: "sticker"}, "", false},
		{"image with stray text", &Message{Type: "image", Text: "x"}, "", false},
		{"empty text", &Message{Type: "text"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.msg.TextContent()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("TextContent() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMembers_Count(t *testing.T) {
	t.Parallel()

	var nilMembers *Members
	if got := nilMembers.Count(); got != 0 {
		t.Errorf("nil Count() = %d, want 0", got)
	}

	m := &Members{Members: []Source{{Type: SourceUser, UserID: "U1"}, {Type: SourceUser, UserID: "U2"}, {Type: SourceUser, UserID: "U3"}}}
	if got := m.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}

func TestKnownVariants(t *testing.T) {
	t.Parallel()

	for _, typ := range []Type{TypeMessage, TypeFollow, TypeUnfollow, TypeJoin, TypeLeave,
		TypePostback, TypeBeacon, TypeAccountLink, TypeMemberJoined, TypeMemberLeft} {
		if !typ.Known() {
			t.Errorf("Type(%q).Known() = false, want true", typ)
		}
	}
	for _, typ := range []Type{"videoPlayComplete", ""} {
		if typ.Known() {
			t.Errorf("Type(%q).Known() = true, want false", typ)
		}
	}

	for _, src := range []SourceType{SourceUser, SourceGroup, SourceRoom} {
		if !src.Known() {
			t.Errorf("SourceType(%q).Known() = false, want true", src)
		}
	}
	for _, src := range []SourceType{"channel", ""} {
		if src.Known() {
			t.Errorf("SourceType(%q).Known() = true, want false", src)
		}
	}
}
