// Package admin is the read-only analytics API behind admin login.
package admin

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"headcanonhub/internal/logging"
	"headcanonhub/internal/visitor"
)

const recentPageViews = 20

type Handler struct {
	Repo *visitor.Repo
}

func NewHandler(repo *visitor.Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes mounts the analytics endpoints. rg must already carry the
// auth middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.stats)
	rg.GET("/visitors", h.listVisitors)
	rg.GET("/visitors/:id", h.getVisitor)
	rg.GET("/pageviews", h.listPageViews)
}

func optionalBool(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", key)
	}
	return &b, nil
}

func page(c *gin.Context) (limit, offset int, err error) {
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("limit must be a non-negative integer")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func (h *Handler) stats(c *gin.Context) {
	s, err := h.Repo.Stats(c.Request.Context())
	if err != nil {
		logging.Error().Err(err).Msg("admin stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) listVisitors(c *gin.Context) {
	isBot, err := optionalBool(c, "is_bot")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	isMobile, err := optionalBool(c, "is_mobile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, offset, err := page(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := visitor.VisitorFilter{
		DeviceType: c.Query("device_type"),
		IsBot:      isBot,
		IsMobile:   isMobile,
		Country:    c.Query("country"),
		Query:      c.Query("q"),
		Limit:      limit,
		Offset:     offset,
	}
	items, err := h.Repo.ListVisitors(c.Request.Context(), f)
	if err != nil {
		logging.Error().Err(err).Msg("admin list visitors")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list visitors failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *Handler) getVisitor(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visitor id"})
		return
	}

	v, err := h.Repo.GetVisitor(c.Request.Context(), id)
	if err != nil {
		logging.Error().Err(err).Int64("visitor_id", id).Msg("admin get visitor")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get visitor failed"})
		return
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "visitor not found"})
		return
	}

	views, err := h.Repo.ListPageViews(c.Request.Context(), visitor.PageViewFilter{VisitorID: id, Limit: recentPageViews})
	if err != nil {
		logging.Error().Err(err).Int64("visitor_id", id).Msg("admin visitor page views")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get visitor failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"visitor": v, "page_views": views})
}

func (h *Handler) listPageViews(c *gin.Context) {
	limit, offset, err := page(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := visitor.PageViewFilter{
		DeviceType:  c.Query("device_type"),
		CountryCode: strings.ToUpper(c.Query("country_code")),
		Method:      c.Query("method"),
		Query:       c.Query("q"),
		Limit:       limit,
		Offset:      offset,
	}
	items, err := h.Repo.ListPageViews(c.Request.Context(), f)
	if err != nil {
		logging.Error().Err(err).Msg("admin list page views")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list page views failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}
