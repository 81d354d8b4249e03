package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crystalsense/crystal/app/config"
	"github.com/crystalsense/crystal/app/database"
	"github.com/crystalsense/crystal/app/ingest"
)

func NewHandler(itemRepo database.ItemRepository, targetRepo database.TargetRepository,
	runRepo database.RunRepository, accountRepo database.AccountRepository,
	coordinator *ingest.Coordinator) *Handler {
	return &Handler{
		itemRepo:    itemRepo,
		targetRepo:  targetRepo,
		runRepo:     runRepo,
		accountRepo: accountRepo,
		coordinator: coordinator,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if itemCount, err := h.itemRepo.GetItemCount(); err == nil {
		health["items"] = itemCount
	}

	if targets, err := h.targetRepo.ListAll(); err == nil {
		health["targets"] = len(targets)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListItems(c *gin.Context) {
	filter := database.ItemFilter{
		Platform: c.Query("platform"),
		Symbol:   c.Query("symbol"),
		Keyword:  c.Query("keyword"),
	}

	if raw := c.Query("from"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' parameter, expected RFC3339 or YYYY-MM-DD"})
			return
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' parameter, expected RFC3339 or YYYY-MM-DD"})
			return
		}
		filter.To = &t
	}

	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	items, total, err := h.itemRepo.ListItems(filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"items": itemsToJSON(items),
		"total": total,
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	var (
		runs []database.Run
		err  error
	)

	if date := c.Query("date"); date != "" {
		runs, err = h.runRepo.ListByDate(date)
	} else {
		limit, _ := strconv.Atoi(c.Query("limit"))
		if limit <= 0 {
			limit = 50
		}
		runs, err = h.runRepo.ListRecent(limit)
	}
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		out = append(out, map[string]interface{}{
			"id":           run.ID,
			"date":         run.Date,
			"platform":     run.Platform,
			"status":       run.Status,
			"target_count": run.TargetCount,
			"item_count":   run.ItemCount,
			"error_detail": run.ErrorDetail,
			"started_at":   run.StartedAt,
			"finished_at":  run.FinishedAt,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  out,
		"total": len(out),
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	var req triggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	result, err := h.coordinator.RunCycle(c.Request.Context(), req.Date)
	if err != nil {
		if errors.Is(err, ingest.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "A cycle for this date is already running"})
			return
		}
		slog.Error("Manual cycle trigger failed", "date", req.Date, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cycle failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) APIListTargets(c *gin.Context) {
	targets, err := h.targetRepo.ListAll()
	if err != nil {
		slog.Error("Database error", "operation", "list_targets", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(targets))
	for _, target := range targets {
		out = append(out, targetToJSON(target))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"targets": out,
		"total":   len(out),
	})
}

func (h *Handler) APICreateTarget(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	target := database.WatchTarget{
		Platform:    req.Platform,
		TargetType:  req.Type,
		ExternalID:  req.ExternalID,
		Symbol:      req.Symbol,
		Keyword:     req.Keyword,
		DisplayName: req.DisplayName,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}

	if err := config.ValidateTarget(&target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target", "details": err.Error()})
		return
	}

	id, err := h.targetRepo.CreateTarget(target)
	if err != nil {
		slog.Error("Database error", "operation", "create_target", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	target.ID = id

	c.JSON(http.StatusCreated, targetToJSON(target))
}

func (h *Handler) APIUpdateTarget(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target id"})
		return
	}

	existing, err := h.targetRepo.GetTarget(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_target", "target_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target not found"})
		return
	}

	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	target := database.WatchTarget{
		ID:          id,
		Platform:    req.Platform,
		TargetType:  req.Type,
		ExternalID:  req.ExternalID,
		Symbol:      req.Symbol,
		Keyword:     req.Keyword,
		DisplayName: req.DisplayName,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}

	if err := config.ValidateTarget(&target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target", "details": err.Error()})
		return
	}

	if err := h.targetRepo.UpdateTarget(target); err != nil {
		slog.Error("Database error", "operation", "update_target", "target_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, targetToJSON(target))
}

func (h *Handler) APIDeleteTarget(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target id"})
		return
	}

	existing, err := h.targetRepo.GetTarget(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_target", "target_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target not found"})
		return
	}

	if err := h.targetRepo.DeleteTarget(id); err != nil {
		slog.Error("Database error", "operation", "delete_target", "target_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) APIUpsertAccount(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	account := database.Account{
		Platform:    req.Platform,
		Username:    req.Username,
		LoginType:   req.LoginType,
		LoginStatus: req.LoginStatus,
		Cookies:     req.Cookies,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if account.LoginStatus == "" {
		account.LoginStatus = database.LoginStatusOnline
	}

	id, err := h.accountRepo.UpsertAccount(account)
	if err != nil {
		slog.Error("Database error", "operation", "upsert_account", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"platform": account.Platform,
		"username": account.Username,
	})
}

// parseTimeParam accepts RFC3339 instants and bare dates.
func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.Local)
}

func itemsToJSON(items []database.Item) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]interface{}{
			"id":              item.ID,
			"platform":        item.Platform,
			"item_id":         item.ItemID,
			"root_id":         item.RootID,
			"author_id":       item.AuthorID,
			"author_name":     item.AuthorName,
			"body":            item.Body,
			"url":             item.URL,
			"posted_at":       item.PostedAt,
			"symbol":          item.Symbol,
			"heat_score":      item.HeatScore,
			"sentiment_score": item.SentimentScore,
			"topic":           item.Topic,
			"extra":           item.Extra,
		})
	}
	return out
}

func targetToJSON(target database.WatchTarget) map[string]interface{} {
	return map[string]interface{}{
		"id":           target.ID,
		"platform":     target.Platform,
		"type":         target.TargetType,
		"external_id":  target.ExternalID,
		"symbol":       target.Symbol,
		"keyword":      target.Keyword,
		"display_name": target.DisplayName,
		"enabled":      target.Enabled,
	}
}
