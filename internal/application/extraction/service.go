package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"event-discovery-api/internal/config"
	"event-discovery-api/internal/domain/entity"
	apperrors "event-discovery-api/pkg/errors"
	"event-discovery-api/pkg/logger"
	"event-discovery-api/pkg/metrics"
)

var tracer = otel.Tracer("extraction")

// ChatModelFactory ChatModel 工厂接口
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// Turn 会话上下文轮次（只携带抽取所需的最小字段）
type Turn struct {
	Role    entity.Role
	Content string
}

// Service 结构化抽取服务
// 模型输出不可信：解析失败先做一次加严重试，仍失败则返回可重试的抽取错误，
// 绝不将未通过校验的产物向下游传递。
type Service struct {
	factory  ChatModelFactory
	provider string
	model    string
}

// NewService 创建抽取服务
func NewService(factory ChatModelFactory, cfg *config.LLMConfig) *Service {
	provider := cfg.DefaultProvider
	modelName := ""
	if p, ok := cfg.Providers[provider]; ok {
		modelName = p.Model
	}
	return &Service{
		factory:  factory,
		provider: provider,
		model:    modelName,
	}
}

// ExtractEvent 从文本中抽取活动草稿
func (s *Service) ExtractEvent(ctx context.Context, text string, history []Turn) (*EventDraft, error) {
	ctx, span := tracer.Start(ctx, "extraction.ExtractEvent")
	defer span.End()

	var draft EventDraft
	err := s.extract(ctx, ModeEventCreation, eventCreationSystemPrompt, text, history, func(jsonText string) error {
		var next EventDraft
		if err := json.Unmarshal([]byte(jsonText), &next); err != nil {
			return apperrors.ErrMalformedExtraction.WithError(err)
		}
		if strings.TrimSpace(next.Title) == "" {
			return apperrors.ErrMalformedExtraction.WithDetail("title is missing")
		}
		if err := next.Validate(); err != nil {
			return err
		}
		draft = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// ExtractSearchIntent 从文本中抽取检索意图
func (s *Service) ExtractSearchIntent(ctx context.Context, text string, history []Turn) (*SearchIntent, error) {
	ctx, span := tracer.Start(ctx, "extraction.ExtractSearchIntent")
	defer span.End()

	var intent SearchIntent
	err := s.extract(ctx, ModeSearchIntent, searchIntentSystemPrompt, text, history, func(jsonText string) error {
		var next SearchIntent
		if err := json.Unmarshal([]byte(jsonText), &next); err != nil {
			return apperrors.ErrMalformedExtraction.WithError(err)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		intent = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// extract 通用抽取流程：调用模型 -> 容错解析 -> 校验 -> 最多一次加严重试
// decode 每次尝试必须解码到全新值，上一次畸形输出的字段不得残留进最终结果。
func (s *Service) extract(ctx context.Context, mode Mode, systemPrompt, text string, history []Turn, decode func(jsonText string) error) error {
	if strings.TrimSpace(text) == "" {
		metrics.ExtractionTotal.WithLabelValues(string(mode), "empty").Inc()
		return apperrors.ErrEmptyInput
	}

	prompts := []string{systemPrompt, systemPrompt + strictRetrySuffix}
	var lastErr error
	for attempt, prompt := range prompts {
		if attempt > 0 {
			metrics.ExtractionRetryTotal.WithLabelValues(string(mode)).Inc()
			logger.Warn(ctx, "extraction output malformed, retrying with strict prompt",
				"mode", string(mode),
				"error", lastErr.Error(),
			)
		}

		raw, err := s.generate(ctx, buildMessages(prompt, text, history))
		if err != nil {
			metrics.ExtractionTotal.WithLabelValues(string(mode), "unavailable").Inc()
			return err
		}

		if err := decode(extractJSONObject(raw)); err != nil {
			lastErr = err
			continue
		}

		metrics.ExtractionTotal.WithLabelValues(string(mode), "ok").Inc()
		return nil
	}

	metrics.ExtractionTotal.WithLabelValues(string(mode), "malformed").Inc()
	return lastErr
}

// SummarizeEvent 为活动生成一句话摘要
// 摘要是锦上添花：失败时返回错误由调用方决定是否降级为空摘要。
func (s *Service) SummarizeEvent(ctx context.Context, event *entity.Event) (string, error) {
	ctx, span := tracer.Start(ctx, "extraction.SummarizeEvent")
	span.SetAttributes(attribute.String("event.id", event.ID))
	defer span.End()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", event.Title)
	if event.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", event.Description)
	}
	fmt.Fprintf(&sb, "Category: %s\n", event.Category)
	if event.City != "" {
		fmt.Fprintf(&sb, "City: %s\n", event.City)
	}
	if event.IsFree {
		sb.WriteString("Price: free\n")
	} else {
		fmt.Fprintf(&sb, "Price: $%.2f\n", float64(event.PriceCents)/100)
	}

	raw, err := s.generate(ctx, []*schema.Message{
		schema.SystemMessage(eventSummarySystemPrompt),
		schema.UserMessage(sb.String()),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// ComposeReply 基于处理结果生成助手回复
func (s *Service) ComposeReply(ctx context.Context, text string, history []Turn, resultContext string) (string, error) {
	ctx, span := tracer.Start(ctx, "extraction.ComposeReply")
	defer span.End()

	msgs := buildMessages(assistantReplySystemPrompt, text, history)
	msgs = append(msgs, schema.UserMessage("Structured result of the request:\n"+resultContext))

	raw, err := s.generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// generate 执行一次模型调用
func (s *Service) generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	chatModel, err := s.factory.Get(ctx, s.provider)
	if err != nil {
		return "", apperrors.ErrUpstreamUnavailable.WithError(err)
	}

	start := time.Now()
	out, err := chatModel.Generate(ctx, msgs)
	metrics.LLMCallDuration.WithLabelValues(s.provider, s.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(s.provider, s.model, "error").Inc()
		return "", apperrors.ErrUpstreamUnavailable.WithError(err)
	}
	metrics.LLMCallTotal.WithLabelValues(s.provider, s.model, "success").Inc()

	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", apperrors.ErrUpstreamUnavailable.WithDetail("model returned empty content")
	}
	return out.Content, nil
}

// buildMessages 组装模型输入：系统提示 + 上下文窗口 + 当前输入
func buildMessages(systemPrompt, text string, history []Turn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	for _, turn := range history {
		switch turn.Role {
		case entity.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(turn.Content))
		}
	}
	msgs = append(msgs, schema.UserMessage(text))
	return msgs
}
