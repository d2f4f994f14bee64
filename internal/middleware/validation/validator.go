package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// QuestionKey is the fiber local holding the cleaned question.
const QuestionKey = "question"

var markupPattern = regexp.MustCompile(`(?i)(<\s*/?\s*[a-z][^>]*>|javascript:|\bon[a-z]+\s*=)`)

type Config struct {
	MaxQuestionLength int
	Logger            *zap.Logger
}

type askRequest struct {
	Question string `json:"question"`
}

// Question validates the JSON body of an ask request and stores the cleaned
// question under QuestionKey. Questions are free text; statements are
// checked later by the executor, not here.
func Question(cfg Config) fiber.Handler {
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if ct := c.Get(fiber.HeaderContentType); ct != "" && !strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Content-Type must be application/json",
			})
		}

		var req askRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		question, problem := Clean(req.Question, cfg.MaxQuestionLength)
		if problem != "" {
			if problem == errMarkup {
				cfg.Logger.Warn("Rejected question with markup", zap.String("ip", c.IP()))
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": problem,
			})
		}

		c.Locals(QuestionKey, question)
		return c.Next()
	}
}

const errMarkup = "Question must be plain text"

// Clean trims a question and drops control characters. It returns a
// user-facing problem when the question cannot be asked.
func Clean(question string, maxLen int) (string, string) {
	question = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, question)
	question = strings.TrimSpace(question)

	switch {
	case question == "":
		return "", "Question is required"
	case len([]rune(question)) > maxLen:
		return "", "Question is too long"
	case markupPattern.MatchString(question):
		return "", errMarkup
	}
	return question, ""
}
