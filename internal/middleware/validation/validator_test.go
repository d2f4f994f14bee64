package validation

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		problem string
	}{
		{"plain", "  How many positive reviews?  ", "How many positive reviews?", ""},
		{"newlines folded", "average\nrating", "average rating", ""},
		{"control dropped", "count\x00 reviews", "count reviews", ""},
		{"sql words are fine", "select the reviews from Ireland", "select the reviews from Ireland", ""},
		{"empty", "   ", "", "Question is required"},
		{"too long", strings.Repeat("a", 101), "", "Question is too long"},
		{"script tag", "<script>alert(1)</script>", "", errMarkup},
		{"handler attr", `x onerror=alert(1)`, "", errMarkup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, problem := Clean(tt.in, 100)
			assert.Equal(t, tt.problem, problem)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuestionMiddleware(t *testing.T) {
	app := fiber.New()
	app.Post("/ask", Question(Config{MaxQuestionLength: 100}), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(QuestionKey).(string))
	})

	req := httptest.NewRequest("POST", "/ask", strings.NewReader(`{"question":"  average rating "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "average rating", string(body))

	req = httptest.NewRequest("POST", "/ask", strings.NewReader(`{"question":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest("POST", "/ask", strings.NewReader(`question=x`))
	req.Header.Set("Content-Type", "text/plain")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}
