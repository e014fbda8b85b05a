package bot

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/extract"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/refdata"
	"github.com/dvloznov/finance-bot/internal/telegram"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessenger struct{ mock.Mock }

func (m *mockMessenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	args := m.Called(ctx, chatID, text)
	return args.Int(0), args.Error(1)
}

func (m *mockMessenger) AnswerCallback(ctx context.Context, callbackID string) error {
	return m.Called(ctx, callbackID).Error(0)
}

type mockTranscriber struct{ mock.Mock }

func (m *mockTranscriber) Transcribe(ctx context.Context, fileID string) (string, error) {
	args := m.Called(ctx, fileID)
	return args.String(0), args.Error(1)
}

type staticReference struct{ snap refdata.Snapshot }

func (s staticReference) Get(ctx context.Context) refdata.Snapshot { return s.snap }

type mockExtractor struct{ mock.Mock }

func (m *mockExtractor) Extract(ctx context.Context, text string, categories, paymentMethods []string) (*extract.Result, error) {
	args := m.Called(ctx, text, categories, paymentMethods)
	res, _ := args.Get(0).(*extract.Result)
	return res, args.Error(1)
}

type mockApprover struct{ mock.Mock }

func (m *mockApprover) Propose(ctx context.Context, chatID int64, messageID int, txn *domain.Transaction, summary string) error {
	return m.Called(ctx, chatID, messageID, txn, summary).Error(0)
}

func (m *mockApprover) Approve(ctx context.Context, chatID int64, messageID int, messageText string) error {
	return m.Called(ctx, chatID, messageID, messageText).Error(0)
}

func (m *mockApprover) Refuse(ctx context.Context, chatID int64, messageID int, messageText string) error {
	return m.Called(ctx, chatID, messageID, messageText).Error(0)
}

type harness struct {
	msg        *mockMessenger
	transcribe *mockTranscriber
	extractor  *mockExtractor
	approval   *mockApprover
	d          *Dispatcher
	ctx        context.Context
}

var testSnapshot = refdata.Snapshot{
	Categories:     []string{"Food", "General"},
	PaymentMethods: []string{"Card", "Cash"},
}

func newHarness() *harness {
	h := &harness{
		msg:        &mockMessenger{},
		transcribe: &mockTranscriber{},
		extractor:  &mockExtractor{},
		approval:   &mockApprover{},
		ctx:        logger.WithContext(context.Background(), zerolog.New(io.Discard)),
	}
	h.d = NewDispatcher(h.msg, h.transcribe, staticReference{snap: testSnapshot}, h.extractor, h.approval)
	return h
}

func (h *harness) assertExpectations(t *testing.T) {
	h.msg.AssertExpectations(t)
	h.transcribe.AssertExpectations(t)
	h.extractor.AssertExpectations(t)
	h.approval.AssertExpectations(t)
}

func TestHandle_TextProposesTransaction(t *testing.T) {
	h := newHarness()
	txn := &domain.Transaction{Amount: decimal.NewFromInt(5), Category: "Food", PaymentMethod: "Cash", Type: domain.TransactionTypeExpense, Description: "bread"}

	h.msg.On("SendText", mock.Anything, int64(42), ProcessingText).Return(500, nil).Once()
	h.extractor.On("Extract", mock.Anything, "bread 5 cash", testSnapshot.Categories, testSnapshot.PaymentMethods).
		Return(&extract.Result{Transaction: txn, Summary: "summary"}, nil).Once()
	h.approval.On("Propose", mock.Anything, int64(42), 500, txn, "summary").Return(nil).Once()

	err := h.d.Handle(h.ctx, telegram.Inbound{Kind: telegram.KindText, ChatID: 42, MessageID: 9, Text: "bread 5 cash"})
	require.NoError(t, err)
	h.assertExpectations(t)
}

func TestHandle_PlaceholderFailureStops(t *testing.T) {
	h := newHarness()
	h.msg.On("SendText", mock.Anything, int64(42), ProcessingText).Return(0, errors.New("bad gateway")).Once()
	h.msg.On("SendText", mock.Anything, int64(42), PlaceholderErrorText).Return(501, nil).Once()

	err := h.d.Handle(h.ctx, telegram.Inbound{Kind: telegram.KindText, ChatID: 42, Text: "bread"})
	require.Error(t, err)
	h.assertExpectations(t)
	h.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_ExtractionErrorIsReported(t *testing.T) {
	h := newHarness()
	h.msg.On("SendText", mock.Anything, int64(42), ProcessingText).Return(500, nil).Once()
	h.extractor.On("Extract", mock.Anything, "bread", mock.Anything, mock.Anything).
		Return(nil, &domain.ExtractionError{Err: errors.New("model_overloaded")}).Once()
	h.msg.On("SendText", mock.Anything, int64(42), "Error processing transaction: model\\_overloaded").Return(501, nil).Once()

	err := h.d.Handle(h.ctx, telegram.Inbound{Kind: telegram.KindText, ChatID: 42, Text: "bread"})
	var target *domain.ExtractionError
	require.ErrorAs(t, err, &target)
	h.assertExpectations(t)
	h.approval.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_AudioIsTranscribedFirst(t *testing.T) {
	h := newHarness()
	res := &extract.Result{Summary: "raw reply"}

	h.msg.On("SendText", mock.Anything, int64(7), ProcessingText).Return(600, nil).Once()
	h.transcribe.On("Transcribe", mock.Anything, "voice-file").Return("coffee two euro", nil).Once()
	h.extractor.On("Extract", mock.Anything, "coffee two euro", mock.Anything, mock.Anything).Return(res, nil).Once()
	h.approval.On("Propose", mock.Anything, int64(7), 600, (*domain.Transaction)(nil), "raw reply").Return(nil).Once()

	err := h.d.Handle(h.ctx, telegram.Inbound{Kind: telegram.KindAudio, ChatID: 7, FileID: "voice-file"})
	require.NoError(t, err)
	h.assertExpectations(t)
}

func TestHandle_TranscriptionFailure(t *testing.T) {
	h := newHarness()
	h.msg.On("SendText", mock.Anything, int64(7), ProcessingText).Return(600, nil).Once()
	h.transcribe.On("Transcribe", mock.Anything, "voice-file").
		Return("", &domain.DownloadError{FilePath: "voice/file_1.oga", StatusCode: 404}).Once()
	h.msg.On("SendText", mock.Anything, int64(7), "Failed to transcribe audio: download voice/file\\_1.oga: status 404").Return(601, nil).Once()

	err := h.d.Handle(h.ctx, telegram.Inbound{Kind: telegram.KindAudio, ChatID: 7, FileID: "voice-file"})
	require.Error(t, err)
	h.assertExpectations(t)
	h.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_Unsupported(t *testing.T) {
	h := newHarness()
	h.msg.On("SendText", mock.Anything, int64(3), UnsupportedText).Return(1, nil).Once()

	require.NoError(t, h.d.Handle(h.ctx, telegram.Inbound{Kind: telegram.KindUnsupported, ChatID: 3}))
	h.assertExpectations(t)
}

func TestHandle_Callbacks(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		method string
	}{
		{name: "approve", data: telegram.CallbackApprove, method: "Approve"},
		{name: "refuse", data: telegram.CallbackRefuse, method: "Refuse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.msg.On("AnswerCallback", mock.Anything, "cb-1").Return(nil).Once()
			h.approval.On(tt.method, mock.Anything, int64(42), 500, "summary text").Return(nil).Once()

			in := telegram.Inbound{
				Kind:      telegram.KindCallback,
				ChatID:    42,
				MessageID: 500,
				Callback:  &telegram.Callback{ID: "cb-1", Data: tt.data, MessageText: "summary text"},
			}
			require.NoError(t, h.d.Handle(h.ctx, in))
			h.assertExpectations(t)
		})
	}
}

func TestHandle_CallbackAnswerFailureIsNotFatal(t *testing.T) {
	h := newHarness()
	h.msg.On("AnswerCallback", mock.Anything, "cb-1").Return(errors.New("query is too old")).Once()
	h.approval.On("Refuse", mock.Anything, int64(1), 2, "t").Return(nil).Once()

	in := telegram.Inbound{Kind: telegram.KindCallback, ChatID: 1, MessageID: 2, Callback: &telegram.Callback{ID: "cb-1", Data: telegram.CallbackRefuse, MessageText: "t"}}
	require.NoError(t, h.d.Handle(h.ctx, in))
	h.assertExpectations(t)
}

func TestHandle_UnknownCallbackAndIgnored(t *testing.T) {
	h := newHarness()
	h.msg.On("AnswerCallback", mock.Anything, "cb-9").Return(nil).Once()

	in := telegram.Inbound{Kind: telegram.KindCallback, ChatID: 1, MessageID: 2, Callback: &telegram.Callback{ID: "cb-9", Data: "something_else"}}
	require.NoError(t, h.d.Handle(h.ctx, in))
	require.NoError(t, h.d.Handle(h.ctx, telegram.Inbound{Kind: telegram.KindIgnored}))

	h.assertExpectations(t)
	assert.Empty(t, h.approval.Calls)
}
