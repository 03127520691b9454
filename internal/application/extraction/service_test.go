package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-discovery-api/internal/config"
	"event-discovery-api/internal/domain/entity"
	apperrors "event-discovery-api/pkg/errors"
)

// scriptedChatModel 按顺序返回预置回复
type scriptedChatModel struct {
	replies  []string
	err      error
	calls    int
	lastMsgs []*schema.Message
}

func (m *scriptedChatModel) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.lastMsgs = msgs
	if m.err != nil {
		return nil, m.err
	}
	reply := m.replies[len(m.replies)-1]
	if m.calls < len(m.replies) {
		reply = m.replies[m.calls]
	}
	m.calls++
	return schema.AssistantMessage(reply, nil), nil
}

func (m *scriptedChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type fakeFactory struct {
	chatModel model.BaseChatModel
	err       error
}

func (f *fakeFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chatModel, nil
}

func llmConfig() *config.LLMConfig {
	return &config.LLMConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai": {Model: "gpt-4o-mini"},
		},
	}
}

func newTestService(chatModel model.BaseChatModel) *Service {
	return NewService(&fakeFactory{chatModel: chatModel}, llmConfig())
}

func TestService_ExtractEvent(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{
		"```json\n{\"title\":\"Jazz Night\",\"category\":\"music\",\"city\":\"Berlin\",\"price_cents\":2500}\n```",
	}}
	svc := newTestService(chatModel)

	draft, err := svc.ExtractEvent(context.Background(), "jazz night in berlin, 25 euros", nil)
	require.NoError(t, err)

	assert.Equal(t, "Jazz Night", draft.Title)
	assert.Equal(t, "music", draft.Category)
	require.NotNil(t, draft.PriceCents)
	assert.Equal(t, int64(2500), *draft.PriceCents)
	assert.Equal(t, 1, chatModel.calls)
}

func TestService_ExtractEventRetriesOnMalformedOutput(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{
		"Sure! I'd be happy to help with that.",
		`{"title":"Jazz Night"}`,
	}}
	svc := newTestService(chatModel)

	draft, err := svc.ExtractEvent(context.Background(), "jazz night", nil)
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night", draft.Title)
	assert.Equal(t, 2, chatModel.calls)
}

func TestService_ExtractEventFailsAfterRetry(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{"not json", "still not json"}}
	svc := newTestService(chatModel)

	_, err := svc.ExtractEvent(context.Background(), "jazz night", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMalformedExtraction))
	assert.Equal(t, 2, chatModel.calls)
}

func TestService_ExtractEventMissingTitleRejected(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{
		`{"category":"music"}`,
		`{"category":"music"}`,
	}}
	svc := newTestService(chatModel)

	_, err := svc.ExtractEvent(context.Background(), "something vague", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMalformedExtraction))
}

func TestService_ExtractEmptyInput(t *testing.T) {
	svc := newTestService(&scriptedChatModel{replies: []string{"{}"}})

	_, err := svc.ExtractEvent(context.Background(), "   ", nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEmptyInput))

	_, err = svc.ExtractSearchIntent(context.Background(), "", nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEmptyInput))
}

func TestService_ExtractUpstreamFailure(t *testing.T) {
	chatModel := &scriptedChatModel{err: errors.New("connection reset")}
	svc := newTestService(chatModel)

	_, err := svc.ExtractEvent(context.Background(), "jazz night", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpstreamUnavailable))
}

func TestService_ExtractSearchIntent(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{
		`{"query":"live jazz","city":"Berlin","free_only":true,"from":"2026-09-01"}`,
	}}
	svc := newTestService(chatModel)

	intent, err := svc.ExtractSearchIntent(context.Background(), "free jazz in berlin in september", nil)
	require.NoError(t, err)

	assert.Equal(t, "live jazz", intent.Query)
	assert.Equal(t, "Berlin", intent.City)
	assert.True(t, intent.FreeOnly)
	require.NotNil(t, intent.FromTime())
}

func TestService_ExtractSearchIntentInvalidTimeRetries(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{
		`{"query":"jazz","from":"next weekend"}`,
		`{"query":"jazz","from":"2026-09-05"}`,
	}}
	svc := newTestService(chatModel)

	intent, err := svc.ExtractSearchIntent(context.Background(), "jazz next weekend", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, chatModel.calls)
	require.NotNil(t, intent.FromTime())
}

func TestService_RetryStartsFromCleanState(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{
		`{"query":"jazz","city":"Berlin","free_only":true,"max_price_cents":-100}`,
		`{"query":"jazz"}`,
	}}
	svc := newTestService(chatModel)

	intent, err := svc.ExtractSearchIntent(context.Background(), "jazz", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, chatModel.calls)

	// 首次校验失败的输出不得把字段残留进重试结果
	assert.Equal(t, "jazz", intent.Query)
	assert.Empty(t, intent.City)
	assert.False(t, intent.FreeOnly)
	assert.Nil(t, intent.MaxPriceCents)
}

func TestService_ExtractSearchIntentClassifiesCreate(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{
		`{"intent":"create"}`,
	}}
	svc := newTestService(chatModel)

	intent, err := svc.ExtractSearchIntent(context.Background(), "i'm hosting rooftop yoga on saturday", nil)
	require.NoError(t, err)
	assert.Equal(t, "create", intent.Intent)
}

func TestService_HistoryIncludedInPrompt(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{`{"query":"jazz"}`}}
	svc := newTestService(chatModel)

	history := []Turn{
		{Role: entity.RoleUser, Content: "I like live music"},
		{Role: entity.RoleAssistant, Content: "Noted, you enjoy live music."},
	}
	_, err := svc.ExtractSearchIntent(context.Background(), "anything this weekend?", history)
	require.NoError(t, err)

	// system + 2 条历史 + 当前输入
	require.Len(t, chatModel.lastMsgs, 4)
	assert.Equal(t, schema.System, chatModel.lastMsgs[0].Role)
	assert.Equal(t, schema.User, chatModel.lastMsgs[1].Role)
	assert.Equal(t, schema.Assistant, chatModel.lastMsgs[2].Role)
	assert.Equal(t, "anything this weekend?", chatModel.lastMsgs[3].Content)
}

func TestService_SummarizeEvent(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{"  An evening of live jazz in Berlin.  "}}
	svc := newTestService(chatModel)

	event := entity.NewEvent("Jazz Night")
	event.City = "Berlin"
	summary, err := svc.SummarizeEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "An evening of live jazz in Berlin.", summary)
}

func TestService_ComposeReply(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{"I found 3 jazz events for you."}}
	svc := newTestService(chatModel)

	reply, err := svc.ComposeReply(context.Background(), "jazz tonight?", nil, `{"events":3}`)
	require.NoError(t, err)
	assert.Equal(t, "I found 3 jazz events for you.", reply)

	// 结构化结果作为额外消息传入
	last := chatModel.lastMsgs[len(chatModel.lastMsgs)-1]
	assert.Contains(t, last.Content, `{"events":3}`)
}

func TestService_EmptyModelContentIsUpstreamError(t *testing.T) {
	chatModel := &scriptedChatModel{replies: []string{"   "}}
	svc := newTestService(chatModel)

	_, err := svc.SummarizeEvent(context.Background(), entity.NewEvent("Jazz Night"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpstreamUnavailable))
}
