package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"event-discovery-api/internal/application/events"
	"event-discovery-api/internal/application/extraction"
	"event-discovery-api/internal/application/matching"
	"event-discovery-api/internal/application/preference"
	"event-discovery-api/internal/config"
	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	apperrors "event-discovery-api/pkg/errors"
	"event-discovery-api/pkg/logger"
	"event-discovery-api/pkg/metrics"
)

var tracer = otel.Tracer("conversation")

// SessionLocker 会话互斥锁端口
// 同一会话同时只处理一个轮次，后到者立即失败。
type SessionLocker interface {
	TryAcquire(ctx context.Context, sessionID, token string) (bool, error)
	Release(ctx context.Context, sessionID, token string) error
}

// IntentStore 跨轮次意图暂存端口
type IntentStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service 会话服务
type Service struct {
	sessions   repository.ConversationSessionRepository
	turns      repository.ConversationTurnRepository
	transactor repository.Transactor
	extractor  *extraction.Service
	engine     *matching.Engine
	events     *events.Service
	tracker    *preference.Tracker
	embedder   events.Embedder
	lock       SessionLocker
	intents    IntentStore

	contextWindow int
	intentTTL     time.Duration
}

// NewService 创建会话服务
func NewService(
	sessions repository.ConversationSessionRepository,
	turns repository.ConversationTurnRepository,
	transactor repository.Transactor,
	extractor *extraction.Service,
	engine *matching.Engine,
	eventSvc *events.Service,
	tracker *preference.Tracker,
	embedder events.Embedder,
	lock SessionLocker,
	intents IntentStore,
	cfg *config.ConversationConfig,
) *Service {
	return &Service{
		sessions:      sessions,
		turns:         turns,
		transactor:    transactor,
		extractor:     extractor,
		engine:        engine,
		events:        eventSvc,
		tracker:       tracker,
		embedder:      embedder,
		lock:          lock,
		intents:       intents,
		contextWindow: cfg.ContextWindow,
		intentTTL:     cfg.IntentTTL,
	}
}

// ChatTurn 处理一轮对话
func (s *Service) ChatTurn(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "conversation.ChatTurn")
	defer span.End()

	if strings.TrimSpace(req.Message) == "" {
		return nil, apperrors.ErrEmptyInput
	}

	session, err := s.getOrCreateSession(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID))
	ctx = logger.WithContext(ctx, logger.SessionIDKey, session.ID)

	// 会话级互斥：并发轮次直接拒绝，不排队
	token := uuid.New().String()
	acquired, err := s.lock.TryAcquire(ctx, session.ID, token)
	if err != nil {
		return nil, apperrors.ErrCache.WithError(err)
	}
	if !acquired {
		metrics.SessionConflictTotal.Inc()
		return nil, apperrors.ErrSessionConflict
	}
	defer func() {
		if err := s.lock.Release(ctx, session.ID, token); err != nil {
			logger.Warn(ctx, "failed to release session lock", "error", err.Error())
		}
	}()

	history, err := s.recentHistory(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	resp := &ChatResponse{SessionID: session.ID, Intent: req.Intent}
	switch req.Intent {
	case IntentCreate:
		err = s.handleCreate(ctx, req, history, resp)
	case IntentSearch:
		err = s.handleSearch(ctx, req, session.ID, history, resp, nil)
	default:
		// 未显式指定意图时由抽取结果判定
		err = s.dispatchExtracted(ctx, req, session.ID, history, resp)
	}
	if err != nil {
		return nil, err
	}

	seq, err := s.persistTurns(ctx, session, req.Message, resp)
	if err != nil {
		return nil, err
	}
	resp.Seq = seq
	return resp, nil
}

// dispatchExtracted 依据抽取出的意图路由：先解析检索意图，判定为创建时转入创建路径。
// 显式指定的 req.Intent 优先，此函数只处理未指定的情况。
func (s *Service) dispatchExtracted(ctx context.Context, req *ChatRequest, sessionID string, history []extraction.Turn, resp *ChatResponse) error {
	intent, err := s.extractor.ExtractSearchIntent(ctx, req.Message, history)
	if err != nil {
		return err
	}
	if intent.Intent == string(IntentCreate) {
		resp.Intent = IntentCreate
		return s.handleCreate(ctx, req, history, resp)
	}
	resp.Intent = IntentSearch
	return s.handleSearch(ctx, req, sessionID, history, resp, intent)
}

// handleSearch 检索路径：意图抽取 -> 意图继承 -> 匹配 -> 偏好信号 -> 回复
// extracted 非空时复用已抽取的意图，避免二次模型调用。
func (s *Service) handleSearch(ctx context.Context, req *ChatRequest, sessionID string, history []extraction.Turn, resp *ChatResponse, extracted *extraction.SearchIntent) error {
	intent := extracted
	if intent == nil {
		var err error
		intent, err = s.extractor.ExtractSearchIntent(ctx, req.Message, history)
		if err != nil {
			return err
		}
	}

	// 继承上一轮意图中未被本轮覆盖的过滤条件（追问场景）
	intent = s.mergeCarriedIntent(ctx, sessionID, intent)
	resp.SearchIntent = intent

	profile, err := s.tracker.Get(ctx, req.UserID)
	if err != nil {
		logger.Warn(ctx, "failed to load preference profile, searching without it", "error", err.Error())
		profile = nil
	}

	var profileVec entity.Vector
	if profile != nil && !profile.ColdStart() {
		profileVec = profile.Vector
	}

	result, err := s.engine.Search(ctx, &matching.Request{
		Query:   intent.Query,
		Filter:  intentToFilter(intent),
		Profile: profileVec,
		Limit:   req.Limit,
	})
	if err != nil {
		return err
	}
	resp.Events = result.Events
	resp.MatchMode = result.Mode

	// 检索是弱偏好信号，异步更新画像
	if req.UserID != "" && intent.Query != "" {
		if vec, embErr := s.embedder.EmbedText(ctx, intent.Query); embErr == nil {
			s.tracker.RecordAsync(req.UserID, preference.SignalSearch, vec)
		}
	}

	resp.Reply = s.composeReply(ctx, req.Message, history, searchResultContext(result))
	return nil
}

// handleCreate 创建路径：草稿抽取 -> 入库 -> 回复
func (s *Service) handleCreate(ctx context.Context, req *ChatRequest, history []extraction.Turn, resp *ChatResponse) error {
	draft, err := s.extractor.ExtractEvent(ctx, req.Message, history)
	if err != nil {
		return err
	}

	event, err := s.events.CreateFromDraft(ctx, draft, req.UserID)
	if err != nil {
		return err
	}
	resp.CreatedEvent = event

	resultCtx, _ := json.Marshal(map[string]interface{}{"created_event": event})
	resp.Reply = s.composeReply(ctx, req.Message, history, string(resultCtx))
	return nil
}

// composeReply 生成助手回复；失败时降级为固定模板
func (s *Service) composeReply(ctx context.Context, message string, history []extraction.Turn, resultContext string) string {
	reply, err := s.extractor.ComposeReply(ctx, message, history, resultContext)
	if err != nil {
		logger.Warn(ctx, "reply generation failed, using fallback", "error", err.Error())
		return "Here is what I found for you."
	}
	return reply
}

// mergeCarriedIntent 将上一轮暂存的意图合并进本轮（本轮字段优先）
func (s *Service) mergeCarriedIntent(ctx context.Context, sessionID string, intent *extraction.SearchIntent) *extraction.SearchIntent {
	key := intentKey(sessionID)

	if data, err := s.intents.Get(ctx, key); err == nil && len(data) > 0 {
		var prev extraction.SearchIntent
		if json.Unmarshal(data, &prev) == nil {
			if intent.Category == "" {
				intent.Category = prev.Category
			}
			if intent.City == "" {
				intent.City = prev.City
			}
			if intent.MaxPriceCents == nil {
				intent.MaxPriceCents = prev.MaxPriceCents
			}
			if !intent.FreeOnly {
				intent.FreeOnly = prev.FreeOnly
			}
			if intent.From == "" {
				intent.From = prev.From
			}
			if intent.To == "" {
				intent.To = prev.To
			}
		}
	}

	if err := s.intents.Set(ctx, key, intent, s.intentTTL); err != nil {
		logger.Debug(ctx, "failed to store carried intent", "error", err.Error())
	}
	return intent
}

// persistTurns 在同一事务中追加用户轮次与助手轮次
// 轮次号取 MaxSeq+1 / +2，事务加唯一索引保证无空洞且不重复。
func (s *Service) persistTurns(ctx context.Context, session *entity.ConversationSession, userMessage string, resp *ChatResponse) (int, error) {
	var assistantSeq int
	err := s.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
		maxSeq, err := s.turns.MaxSeq(txCtx, session.ID)
		if err != nil {
			return err
		}

		userTurn := entity.NewConversationTurn(session.ID, maxSeq+1, entity.RoleUser, userMessage, nil)
		if err := s.turns.Create(txCtx, userTurn); err != nil {
			return err
		}

		payload, _ := json.Marshal(resp)
		assistantTurn := entity.NewConversationTurn(session.ID, maxSeq+2, entity.RoleAssistant, resp.Reply, payload)
		if err := s.turns.Create(txCtx, assistantTurn); err != nil {
			return err
		}
		assistantSeq = assistantTurn.Seq

		session.UpdatedAt = time.Now()
		return s.sessions.Update(txCtx, session)
	})
	if err != nil {
		return 0, err
	}
	return assistantSeq, nil
}

// getOrCreateSession 获取已有会话或创建新会话
func (s *Service) getOrCreateSession(ctx context.Context, req *ChatRequest) (*entity.ConversationSession, error) {
	if req.SessionID == "" {
		session := entity.NewConversationSession(req.UserID)
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}
	return s.sessions.GetByID(ctx, req.SessionID)
}

// GetSession 获取会话详情（含全部轮次）
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	ctx, span := tracer.Start(ctx, "conversation.GetSession")
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer span.End()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns, err := s.turns.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{Session: session, Turns: turns}, nil
}

// DeleteSession 删除会话及其全部轮次（原子）
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "conversation.DeleteSession")
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer span.End()

	err := s.transactor.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.sessions.Delete(txCtx, sessionID)
	})
	if err != nil {
		return err
	}

	// 会话删除后其暂存意图即为垃圾，立即清理
	if err := s.intents.Delete(ctx, intentKey(sessionID)); err != nil {
		logger.Debug(ctx, "failed to drop carried intent", "error", err.Error())
	}
	return nil
}

// recentHistory 读取抽取上下文窗口
func (s *Service) recentHistory(ctx context.Context, sessionID string) ([]extraction.Turn, error) {
	turns, err := s.turns.ListRecent(ctx, sessionID, s.contextWindow)
	if err != nil {
		return nil, err
	}
	history := make([]extraction.Turn, len(turns))
	for i, t := range turns {
		history[i] = extraction.Turn{Role: t.Role, Content: t.Content}
	}
	return history, nil
}

// intentToFilter 将检索意图转换为标量过滤条件
func intentToFilter(intent *extraction.SearchIntent) *repository.EventFilter {
	filter := &repository.EventFilter{
		City:          intent.City,
		MaxPriceCents: intent.MaxPriceCents,
		FreeOnly:      intent.FreeOnly,
		From:          intent.FromTime(),
		To:            intent.ToTime(),
	}
	// 未知分类值不转为过滤条件，避免把结果错误地收窄到 uncategorized
	if c := entity.ParseCategory(intent.Category); intent.Category != "" && c != entity.CategoryUncategorized {
		filter.Category = c
	}
	if len(intent.Keywords) > 0 {
		filter.Keyword = intent.Keywords[0]
	}
	return filter
}

// searchResultContext 将匹配结果压缩为回复生成的上下文
func searchResultContext(result *matching.Result) string {
	type item struct {
		Title    string `json:"title"`
		Category string `json:"category"`
		City     string `json:"city,omitempty"`
		IsFree   bool   `json:"is_free"`
	}
	items := make([]item, 0, len(result.Events))
	for _, se := range result.Events {
		items = append(items, item{
			Title:    se.Event.Title,
			Category: string(se.Event.Category),
			City:     se.Event.City,
			IsFree:   se.Event.IsFree,
		})
	}
	data, _ := json.Marshal(map[string]interface{}{
		"mode":   string(result.Mode),
		"count":  len(items),
		"events": items,
	})
	return string(data)
}

func intentKey(sessionID string) string {
	return fmt.Sprintf("session:intent:%s", sessionID)
}
