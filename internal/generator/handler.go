// Package generator exposes the headcanon engine over the public JSON API.
package generator

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"headcanonhub/internal/headcanon"
	"headcanonhub/internal/logging"
	"headcanonhub/internal/metrics"
)

const (
	DefaultCount     = 4
	MaxSubjectLength = 100
)

// Engine is the part of *headcanon.Engine the handlers need.
type Engine interface {
	Generate(subject, fandom, tone string, count int) ([]string, error)
	GenerateShip(subject1, subject2, tone string, count int) ([]string, error)
}

type Handler struct {
	Engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{Engine: engine}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/generate/", h.generate)
	rg.POST("/generate-ship/", h.generateShip)
	rg.GET("/tones/", h.tones)
	rg.GET("/fandoms/", h.fandoms)
}

type generateReq struct {
	Character string `json:"character"`
	Fandom    string `json:"fandom"`
	Tone      string `json:"tone"`
	Count     int    `json:"count"`
}

type generateShipReq struct {
	Character1 string `json:"character1"`
	Character2 string `json:"character2"`
	Tone       string `json:"tone"`
	Count      int    `json:"count"`
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// requestTone keeps a valid tone key and turns anything else into random.
func requestTone(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == string(headcanon.ToneRandom) {
		return t
	}
	for _, named := range headcanon.NamedTones() {
		if t == string(named) {
			return t
		}
	}
	return string(headcanon.ToneRandom)
}

func requestCount(n int) int {
	if n == 0 {
		return DefaultCount
	}
	return n
}

func checkSubject(name string) (string, bool) {
	name = strings.TrimSpace(name)
	return name, name != "" && utf8.RuneCountInString(name) <= MaxSubjectLength
}

func (h *Handler) generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON data")
		return
	}

	character := strings.TrimSpace(req.Character)
	if character == "" {
		fail(c, http.StatusBadRequest, "Character name is required")
		return
	}
	if utf8.RuneCountInString(character) > MaxSubjectLength {
		fail(c, http.StatusBadRequest, "Character name is too long")
		return
	}

	tone := requestTone(req.Tone)
	out, err := h.Engine.Generate(character, strings.TrimSpace(req.Fandom), tone, requestCount(req.Count))
	if err != nil {
		logging.Error().Err(err).Str("tone", tone).Msg("generate headcanons")
		fail(c, http.StatusInternalServerError, "An error occurred while generating headcanons")
		return
	}
	metrics.RecordGeneration("single", tone)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"headcanons": out,
		"character":  character,
		"tone":       tone,
	})
}

func (h *Handler) generateShip(c *gin.Context) {
	var req generateShipReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON data")
		return
	}

	c1, ok1 := checkSubject(req.Character1)
	c2, ok2 := checkSubject(req.Character2)
	if c1 == "" || c2 == "" {
		fail(c, http.StatusBadRequest, "Both character names are required")
		return
	}
	if !ok1 || !ok2 {
		fail(c, http.StatusBadRequest, "Character name is too long")
		return
	}

	tone := requestTone(req.Tone)
	out, err := h.Engine.GenerateShip(c1, c2, tone, requestCount(req.Count))
	if err != nil {
		logging.Error().Err(err).Str("tone", tone).Msg("generate ship headcanons")
		fail(c, http.StatusInternalServerError, "An error occurred while generating headcanons")
		return
	}
	metrics.RecordGeneration("ship", tone)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"headcanons": out,
		"character1": c1,
		"character2": c2,
		"tone":       tone,
	})
}

func (h *Handler) tones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tones": headcanon.ToneOptions()})
}

func (h *Handler) fandoms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fandoms": headcanon.PopularFandoms()})
}
