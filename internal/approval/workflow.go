// Package approval keeps proposed transactions pending until the user
// approves or refuses them from the chat.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/finance-bot/internal/cache"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/metrics"
	"github.com/dvloznov/finance-bot/internal/sink"
	"github.com/dvloznov/finance-bot/internal/telegram"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

// DefaultPendingTTL is how long a proposal waits for a decision.
const DefaultPendingTTL = time.Hour

const (
	approvedBanner = "✅ *Transaction Approved*\n\n"
	refusedBanner  = "❌ *Transaction Refused*\n\n"
	debugHeader    = "*Debug: Transaction sent to server*\n"
)

// Messenger sends and edits chat messages.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, keyboard *models.InlineKeyboardMarkup) error
}

// Config tunes the workflow.
type Config struct {
	PendingTTL time.Duration
	DebugEcho  bool
	Currency   string
}

// Workflow drives a proposal through Proposed, Approved, Refused or Expired.
// Expiry is left to the store TTL.
type Workflow struct {
	store cache.Store
	sink  sink.Sink
	msg   Messenger
	cfg   Config
	log   zerolog.Logger
}

// NewWorkflow creates a Workflow.
func NewWorkflow(store cache.Store, s sink.Sink, msg Messenger, cfg Config, log zerolog.Logger) *Workflow {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	return &Workflow{
		store: store,
		sink:  s,
		msg:   msg,
		cfg:   cfg,
		log:   log,
	}
}

// Propose shows an extraction result on the placeholder message. A parsed
// transaction is stored under the message key and gets the approval
// buttons; a nil transaction shows summary alone and stores nothing.
func (w *Workflow) Propose(ctx context.Context, chatID int64, messageID int, txn *domain.Transaction, summary string) error {
	if txn == nil {
		return w.msg.EditText(ctx, chatID, messageID, telegram.EscapeMarkdown(summary), nil)
	}

	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("Propose: encode transaction: %w", err)
	}

	key := cache.TransactionKey(chatID, messageID)
	if err := w.store.Put(ctx, key, string(data), w.cfg.PendingTTL); err != nil {
		return fmt.Errorf("Propose: store %s: %w", key, err)
	}

	if err := w.msg.EditText(ctx, chatID, messageID, summary, telegram.ApprovalKeyboard()); err != nil {
		// Without buttons the record can never be resolved.
		w.delete(ctx, key)
		return err
	}

	w.log.Debug().Str("key", key).Msg("Transaction proposed")
	return nil
}

// Approve forwards the pending transaction for the message, if any, and
// marks the message approved. A missing record (expired or already
// resolved) is approved without forwarding.
func (w *Workflow) Approve(ctx context.Context, chatID int64, messageID int, messageText string) error {
	key := cache.TransactionKey(chatID, messageID)
	log := w.log.With().Str("key", key).Logger()

	raw, ok, err := w.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("Approve: read %s: %w", key, err)
	}

	if !ok {
		log.Info().Msg("No pending transaction, nothing forwarded")
		metrics.CallbacksProcessed.WithLabelValues("approve_missing").Inc()
		return w.msg.EditText(ctx, chatID, messageID, approvedBanner+telegram.EscapeMarkdown(messageText), nil)
	}

	var txn domain.Transaction
	if err := json.Unmarshal([]byte(raw), &txn); err != nil {
		perr := &domain.ParseError{What: "pending transaction", Raw: raw, Err: err}
		log.Error().Err(perr).Msg("Dropping unreadable pending transaction")
		w.delete(ctx, key)
		return w.msg.EditText(ctx, chatID, messageID, approvedBanner+telegram.EscapeMarkdown(messageText), nil)
	}

	if err := w.sink.Forward(ctx, txn); err != nil {
		log.Error().Err(err).Msg("Failed to forward approved transaction")
		metrics.Errors.WithLabelValues("sink").Inc()
	} else if w.cfg.DebugEcho {
		w.sendDebugEcho(ctx, chatID, txn)
	}

	w.delete(ctx, key)
	metrics.CallbacksProcessed.WithLabelValues("approve").Inc()

	return w.msg.EditText(ctx, chatID, messageID, approvedBanner+domain.FormatTransaction(txn, w.cfg.Currency), nil)
}

// Refuse discards the pending transaction for the message and marks the
// message refused.
func (w *Workflow) Refuse(ctx context.Context, chatID int64, messageID int, messageText string) error {
	w.delete(ctx, cache.TransactionKey(chatID, messageID))
	metrics.CallbacksProcessed.WithLabelValues("refuse").Inc()
	return w.msg.EditText(ctx, chatID, messageID, refusedBanner+telegram.EscapeMarkdown(messageText), nil)
}

func (w *Workflow) delete(ctx context.Context, key string) {
	if err := w.store.Delete(ctx, key); err != nil {
		w.log.Warn().Err(err).Str("key", key).Msg("Failed to delete pending transaction")
	}
}

func (w *Workflow) sendDebugEcho(ctx context.Context, chatID int64, txn domain.Transaction) {
	pretty, err := json.MarshalIndent(txn, "", "  ")
	if err != nil {
		w.log.Warn().Err(err).Msg("Failed to encode debug echo")
		return
	}
	text := debugHeader + "```\n" + string(pretty) + "\n```"
	if _, err := w.msg.SendText(ctx, chatID, text); err != nil {
		w.log.Warn().Err(err).Msg("Failed to send debug echo")
	}
}
