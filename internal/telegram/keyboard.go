package telegram

import (
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/go-telegram/bot/models"
)

// Callback data carried by the approval buttons.
const (
	CallbackApprove = "approve_transaction"
	CallbackRefuse  = "refuse_transaction"
)

// ApprovalKeyboard returns the Approve / Refuse row shown under a proposal.
func ApprovalKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Approve", CallbackData: CallbackApprove},
				{Text: "❌ Refuse", CallbackData: CallbackRefuse},
			},
		},
	}
}

// RemoveKeyboard returns an empty inline keyboard; sending it on edit
// strips the buttons from a message.
func RemoveKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{},
	}
}

// EscapeMarkdown escapes the legacy Markdown entities so arbitrary text
// (error messages, transcripts) cannot break message parsing.
func EscapeMarkdown(s string) string {
	return domain.EscapeMarkdown(s)
}
