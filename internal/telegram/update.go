package telegram

import (
	"encoding/json"
	"io"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/go-telegram/bot/models"
)

// Kind tags an inbound update.
type Kind int

const (
	// KindIgnored is any update the bot does not react to.
	KindIgnored Kind = iota
	// KindText is a message with text.
	KindText
	// KindAudio is a message with a voice note or audio file.
	KindAudio
	// KindUnsupported is a message with neither text nor audio.
	KindUnsupported
	// KindCallback is an inline button press.
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAudio:
		return "audio"
	case KindUnsupported:
		return "unsupported"
	case KindCallback:
		return "callback"
	default:
		return "ignored"
	}
}

// Callback is the part of a button press the approval workflow needs.
type Callback struct {
	ID          string
	Data        string
	MessageText string
}

// Inbound is an update reduced to what the dispatcher acts on.
type Inbound struct {
	Kind      Kind
	UpdateID  int64
	ChatID    int64
	MessageID int

	Text     string    // KindText
	FileID   string    // KindAudio
	Callback *Callback // KindCallback
}

// DecodeUpdate parses a webhook body. Malformed JSON is a *domain.ParseError.
func DecodeUpdate(r io.Reader) (*models.Update, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &domain.ParseError{What: "update", Err: err}
	}

	var update models.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, &domain.ParseError{What: "update", Raw: string(raw), Err: err}
	}
	return &update, nil
}

// Classify maps an update onto exactly one Inbound kind.
func Classify(u *models.Update) Inbound {
	if u == nil {
		return Inbound{Kind: KindIgnored}
	}

	in := Inbound{UpdateID: u.ID}

	switch {
	case u.Message != nil:
		msg := u.Message
		in.ChatID = msg.Chat.ID
		in.MessageID = msg.ID

		switch {
		case msg.Text != "":
			in.Kind = KindText
			in.Text = msg.Text
		case msg.Voice != nil:
			in.Kind = KindAudio
			in.FileID = msg.Voice.FileID
		case msg.Audio != nil:
			in.Kind = KindAudio
			in.FileID = msg.Audio.FileID
		default:
			in.Kind = KindUnsupported
		}

	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		// Without an accessible message there is no chat to edit.
		if cq.Message.Message == nil {
			in.Kind = KindIgnored
			return in
		}
		in.Kind = KindCallback
		in.ChatID = cq.Message.Message.Chat.ID
		in.MessageID = cq.Message.Message.ID
		in.Callback = &Callback{
			ID:          cq.ID,
			Data:        cq.Data,
			MessageText: cq.Message.Message.Text,
		}

	default:
		in.Kind = KindIgnored
	}

	return in
}
