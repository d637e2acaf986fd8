package generator

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headcanonhub/internal/headcanon"
)

type stubEngine struct {
	err       error
	lastTone  string
	lastCount int
	lastArgs  []string
}

func (s *stubEngine) Generate(subject, fandom, tone string, count int) ([]string, error) {
	s.lastTone, s.lastCount, s.lastArgs = tone, count, []string{subject, fandom}
	if s.err != nil {
		return nil, s.err
	}
	return []string{subject + " likes tea"}, nil
}

func (s *stubEngine) GenerateShip(subject1, subject2, tone string, count int) ([]string, error) {
	s.lastTone, s.lastCount, s.lastArgs = tone, count, []string{subject1, subject2}
	if s.err != nil {
		return nil, s.err
	}
	return []string{subject1 + " and " + subject2}, nil
}

func newRouter(engine Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(engine).RegisterRoutes(r.Group("/api"))
	return r
}

func post(r http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestGenerate_Validation(t *testing.T) {
	r := newRouter(&stubEngine{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"character":`, "Invalid JSON data"},
		{"empty body", ``, "Invalid JSON data"},
		{"missing character", `{"tone":"dark"}`, "Character name is required"},
		{"blank character", `{"character":"   "}`, "Character name is required"},
		{"too long", `{"character":"` + strings.Repeat("é", MaxSubjectLength+1) + `"}`, "Character name is too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := post(r, "/api/generate/", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestGenerate_Normalizes(t *testing.T) {
	stub := &stubEngine{}
	r := newRouter(stub)

	w, body := post(r, "/api/generate/", `{"character":"  Kai ","fandom":" Naruto ","tone":"DARK"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Kai", body["character"])
	assert.Equal(t, "dark", body["tone"])
	assert.Equal(t, []string{"Kai", "Naruto"}, stub.lastArgs)
	assert.Equal(t, DefaultCount, stub.lastCount)

	_, body = post(r, "/api/generate/", `{"character":"Kai","tone":"spooky","count":9}`)
	assert.Equal(t, "random", body["tone"], "unknown tones become random")
	assert.Equal(t, 9, stub.lastCount, "clamping is the engine's job")

	_, body = post(r, "/api/generate/", `{"character":"Kai"}`)
	assert.Equal(t, "random", body["tone"])

	w, _ = post(r, "/api/generate/", `{"character":"`+strings.Repeat("x", MaxSubjectLength)+`"}`)
	assert.Equal(t, http.StatusOK, w.Code, "exactly at the limit is fine")
}

func TestGenerate_EngineError(t *testing.T) {
	r := newRouter(&stubEngine{err: errors.New("boom")})
	w, body := post(r, "/api/generate/", `{"character":"Kai"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "An error occurred while generating headcanons", body["error"])

	w, _ = post(r, "/api/generate-ship/", `{"character1":"Rin","character2":"Sora"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGenerateShip(t *testing.T) {
	stub := &stubEngine{}
	r := newRouter(stub)

	w, body := post(r, "/api/generate-ship/", `{"character1":"Rin","character2":" "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Both character names are required", body["error"])

	w, body = post(r, "/api/generate-ship/", `{"character1":"Rin","character2":"`+strings.Repeat("y", MaxSubjectLength+1)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Character name is too long", body["error"])

	w, body = post(r, "/api/generate-ship/", `{"character1":" Rin","character2":"Sora ","tone":"funny","count":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rin", body["character1"])
	assert.Equal(t, "Sora", body["character2"])
	assert.Equal(t, "funny", body["tone"])
	assert.Equal(t, 2, stub.lastCount)
}

func TestGenerate_RealEngine(t *testing.T) {
	engine := headcanon.NewEngine(nil, headcanon.WithRand(rand.New(rand.NewPCG(7, 11))))
	r := newRouter(engine)

	w, body := post(r, "/api/generate/", `{"character":"Kai","tone":"dark"}`)
	require.Equal(t, http.StatusOK, w.Code)
	items, ok := body["headcanons"].([]any)
	require.True(t, ok)
	assert.Len(t, items, DefaultCount)
	for _, it := range items {
		assert.Contains(t, it, "Kai")
	}

	w, body = post(r, "/api/generate-ship/", `{"character1":"Rin","character2":"Sora","count":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["headcanons"], headcanon.MinCount)
}

func TestMetadataEndpoints(t *testing.T) {
	r := newRouter(&stubEngine{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tones/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var tones struct {
		Tones []headcanon.ToneOption `json:"tones"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tones))
	assert.Len(t, tones.Tones, 5)
	assert.Equal(t, "random", tones.Tones[4].Key)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/fandoms/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var fandoms struct {
		Fandoms []string `json:"fandoms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fandoms))
	assert.Len(t, fandoms.Fandoms, 27)
}
