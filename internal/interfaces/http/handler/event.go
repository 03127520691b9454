// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"event-discovery-api/internal/application/events"
	"event-discovery-api/internal/application/extraction"
	"event-discovery-api/internal/application/matching"
	"event-discovery-api/internal/application/preference"
	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	"event-discovery-api/internal/interfaces/http/dto"
)

// EventHandler 活动处理器
type EventHandler struct {
	events  *events.Service
	engine  *matching.Engine
	tracker *preference.Tracker
}

// NewEventHandler 创建活动处理器
func NewEventHandler(eventSvc *events.Service, engine *matching.Engine, tracker *preference.Tracker) *EventHandler {
	return &EventHandler{
		events:  eventSvc,
		engine:  engine,
		tracker: tracker,
	}
}

// Create 创建活动
// @Summary 创建活动
// @Tags Events
// @Accept json
// @Produce json
// @Param body body dto.CreateEventRequest true "创建活动请求"
// @Success 201 {object} dto.Response[dto.EventResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	// 自由文本路径：抽取草稿，结构化字段覆盖抽取结果
	if strings.TrimSpace(req.Text) != "" {
		created, err := h.events.CreateFromText(c.Request.Context(), req.Text, draftOverride(&req), req.UserID)
		if err != nil {
			dto.FromError(c, err)
			return
		}
		dto.Created(c, dto.ToEventResponse(created))
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		dto.BadRequest(c, "either text or title is required")
		return
	}

	event := entity.NewEvent(strings.TrimSpace(req.Title))
	event.Description = req.Description
	event.Category = entity.ParseCategory(req.Category)
	event.City = req.City
	event.Venue = req.Venue
	if req.PriceCents != nil {
		event.SetPrice(*req.PriceCents)
	} else if req.IsFree != nil && *req.IsFree {
		event.SetPrice(0)
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			dto.BadRequest(c, "start_time must be RFC3339")
			return
		}
		event.StartTime = &t
	}
	for _, tag := range req.Tags {
		event.AddTag(tag)
	}

	created, err := h.events.Create(c.Request.Context(), event, req.UserID)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, dto.ToEventResponse(created))
}

// Get 获取活动详情
// @Summary 获取活动详情
// @Tags Events
// @Produce json
// @Param id path string true "活动 ID"
// @Success 200 {object} dto.Response[dto.EventResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	// 浏览详情计入偏好画像（可选）
	if userID := c.Query("user_id"); userID != "" {
		h.events.RecordView(c.Request.Context(), event, userID)
	}
	dto.Success(c, dto.ToEventResponse(event))
}

// Update 更新活动
// @Summary 更新活动
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "活动 ID"
// @Param body body dto.UpdateEventRequest true "更新活动请求"
// @Success 200 {object} dto.Response[dto.EventResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	event := &entity.Event{
		ID:          c.Param("id"),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Summary:     req.Summary,
		Category:    entity.ParseCategory(req.Category),
		City:        req.City,
		Venue:       req.Venue,
		Tags:        entity.StringSlice{},
	}
	if req.PriceCents != nil {
		event.SetPrice(*req.PriceCents)
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			dto.BadRequest(c, "start_time must be RFC3339")
			return
		}
		event.StartTime = &t
	}
	for _, tag := range req.Tags {
		event.AddTag(tag)
	}

	updated, err := h.events.Update(c.Request.Context(), event)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToEventResponse(updated))
}

// Delete 删除活动
// @Summary 删除活动
// @Tags Events
// @Param id path string true "活动 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}

// Search 检索活动
// @Summary 语义检索活动
// @Tags Events
// @Produce json
// @Param q query string false "语义查询文本"
// @Success 200 {object} dto.Response[dto.SearchEventsResponse]
// @Router /v1/events/search [get]
func (h *EventHandler) Search(c *gin.Context) {
	var query dto.SearchEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	filter, err := buildFilter(&query)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	profile, err := h.loadProfile(c, query.UserID)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	result, err := h.engine.Search(c.Request.Context(), &matching.Request{
		Query:   query.Q,
		Filter:  filter,
		Profile: profile,
		Limit:   query.Limit,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToSearchEventsResponse(result))
}

// Recommendations 个性化推荐
// @Summary 个性化活动推荐
// @Tags Events
// @Produce json
// @Param user_id query string false "用户 ID"
// @Success 200 {object} dto.Response[dto.SearchEventsResponse]
// @Router /v1/events/recommendations [get]
func (h *EventHandler) Recommendations(c *gin.Context) {
	var query dto.SearchEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	filter, err := buildFilter(&query)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	profile, err := h.loadProfile(c, query.UserID)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	result, err := h.engine.Search(c.Request.Context(), &matching.Request{
		Filter:  filter,
		Profile: profile,
		Limit:   query.Limit,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToSearchEventsResponse(result))
}

// draftOverride 将请求中的结构化字段转为抽取草稿覆盖
func draftOverride(req *dto.CreateEventRequest) *extraction.EventDraft {
	d := &extraction.EventDraft{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  req.PriceCents,
		IsFree:      req.IsFree,
		City:        req.City,
		Venue:       req.Venue,
		Tags:        req.Tags,
	}
	if req.StartTime != nil {
		d.StartTime = *req.StartTime
	}
	return d
}

// loadProfile 加载用户偏好向量；冷启动返回 nil
func (h *EventHandler) loadProfile(c *gin.Context, userID string) (entity.Vector, error) {
	if userID == "" {
		return nil, nil
	}
	profile, err := h.tracker.Get(c.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	if profile.ColdStart() {
		return nil, nil
	}
	return profile.Vector, nil
}

// buildFilter 查询参数转过滤条件
func buildFilter(q *dto.SearchEventsQuery) (*repository.EventFilter, error) {
	filter := &repository.EventFilter{
		City:          q.City,
		MaxPriceCents: q.MaxPriceCents,
		FreeOnly:      q.FreeOnly,
	}
	if c := entity.ParseCategory(q.Category); q.Category != "" && c != entity.CategoryUncategorized {
		filter.Category = c
	}
	if q.From != "" {
		t, err := parseDateOrTime(q.From)
		if err != nil {
			return nil, err
		}
		filter.From = &t
	}
	if q.To != "" {
		t, err := parseDateOrTime(q.To)
		if err != nil {
			return nil, err
		}
		filter.To = &t
	}
	return filter, nil
}

func parseDateOrTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
