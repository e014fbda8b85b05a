// Package bot routes classified updates to the transcription, extraction
// and approval steps.
package bot

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/extract"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/metrics"
	"github.com/dvloznov/finance-bot/internal/refdata"
	"github.com/dvloznov/finance-bot/internal/telegram"
)

// Texts sent to the chat.
const (
	ProcessingText       = "Processing..."
	PlaceholderErrorText = "Error: Could not send processing message"
	UnsupportedText      = "Message not supported"
	transcribeErrPrefix  = "Failed to transcribe audio: "
	processingErrPrefix  = "Error processing transaction: "
)

// Messenger is the subset of the chat client the dispatcher uses.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Transcriber turns an audio attachment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, fileID string) (string, error)
}

// ReferenceProvider returns the current categories and payment methods.
type ReferenceProvider interface {
	Get(ctx context.Context) refdata.Snapshot
}

// Extractor structures transaction text.
type Extractor interface {
	Extract(ctx context.Context, text string, categories, paymentMethods []string) (*extract.Result, error)
}

// Approver owns the pending transaction lifecycle.
type Approver interface {
	Propose(ctx context.Context, chatID int64, messageID int, txn *domain.Transaction, summary string) error
	Approve(ctx context.Context, chatID int64, messageID int, messageText string) error
	Refuse(ctx context.Context, chatID int64, messageID int, messageText string) error
}

// Dispatcher handles one inbound update at a time; it keeps no state.
type Dispatcher struct {
	msg        Messenger
	transcribe Transcriber
	reference  ReferenceProvider
	extractor  Extractor
	approval   Approver
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(msg Messenger, transcribe Transcriber, reference ReferenceProvider, extractor Extractor, approval Approver) *Dispatcher {
	return &Dispatcher{
		msg:        msg,
		transcribe: transcribe,
		reference:  reference,
		extractor:  extractor,
		approval:   approval,
	}
}

// Handle runs the path for in.Kind. The returned error is for logging; the
// user has already been told whatever they need to know.
func (d *Dispatcher) Handle(ctx context.Context, in telegram.Inbound) error {
	switch in.Kind {
	case telegram.KindText:
		return d.handleText(ctx, in)
	case telegram.KindAudio:
		return d.handleAudio(ctx, in)
	case telegram.KindUnsupported:
		_, err := d.msg.SendText(ctx, in.ChatID, UnsupportedText)
		return err
	case telegram.KindCallback:
		return d.handleCallback(ctx, in)
	default:
		return nil
	}
}

func (d *Dispatcher) handleText(ctx context.Context, in telegram.Inbound) error {
	placeholderID, err := d.sendPlaceholder(ctx, in.ChatID)
	if err != nil {
		return err
	}
	return d.process(ctx, in.ChatID, placeholderID, in.Text)
}

func (d *Dispatcher) handleAudio(ctx context.Context, in telegram.Inbound) error {
	placeholderID, err := d.sendPlaceholder(ctx, in.ChatID)
	if err != nil {
		return err
	}

	text, err := d.transcribe.Transcribe(ctx, in.FileID)
	if err != nil {
		d.reply(ctx, in.ChatID, transcribeErrPrefix+telegram.EscapeMarkdown(err.Error()))
		return fmt.Errorf("handleAudio: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("transcript", text).Msg("Voice message transcribed")

	return d.process(ctx, in.ChatID, placeholderID, text)
}

func (d *Dispatcher) handleCallback(ctx context.Context, in telegram.Inbound) error {
	log := logger.FromContext(ctx)
	cb := in.Callback
	if cb == nil {
		return nil
	}

	if err := d.msg.AnswerCallback(ctx, cb.ID); err != nil {
		log.Warn().Err(err).Str("callback_id", cb.ID).Msg("Failed to answer callback query")
	}

	switch cb.Data {
	case telegram.CallbackApprove:
		return d.approval.Approve(ctx, in.ChatID, in.MessageID, cb.MessageText)
	case telegram.CallbackRefuse:
		return d.approval.Refuse(ctx, in.ChatID, in.MessageID, cb.MessageText)
	default:
		metrics.CallbacksProcessed.WithLabelValues("unknown").Inc()
		log.Debug().Str("data", cb.Data).Msg("Ignoring unknown callback data")
		return nil
	}
}

// process runs reference lookup, extraction and proposal for text, editing
// the placeholder message in place.
func (d *Dispatcher) process(ctx context.Context, chatID int64, placeholderID int, text string) error {
	snap := d.reference.Get(ctx)

	res, err := d.extractor.Extract(ctx, text, snap.Categories, snap.PaymentMethods)
	if err != nil {
		d.reply(ctx, chatID, processingErrPrefix+telegram.EscapeMarkdown(err.Error()))
		return fmt.Errorf("process: %w", err)
	}

	if err := d.approval.Propose(ctx, chatID, placeholderID, res.Transaction, res.Summary); err != nil {
		d.reply(ctx, chatID, processingErrPrefix+telegram.EscapeMarkdown(err.Error()))
		return fmt.Errorf("process: %w", err)
	}
	return nil
}

func (d *Dispatcher) sendPlaceholder(ctx context.Context, chatID int64) (int, error) {
	id, err := d.msg.SendText(ctx, chatID, ProcessingText)
	if err == nil && id != 0 {
		return id, nil
	}
	if err == nil {
		err = fmt.Errorf("sendMessage returned no message id")
	}
	d.reply(ctx, chatID, PlaceholderErrorText)
	return 0, fmt.Errorf("sendPlaceholder: %w", err)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if _, err := d.msg.SendText(ctx, chatID, text); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}
