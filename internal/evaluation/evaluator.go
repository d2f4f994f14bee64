// Package evaluation replays a question dataset through the engine and
// summarises how the pipeline fared.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/query"
	"github.com/review-agent/backend/internal/storage/models"
	"github.com/review-agent/backend/pkg/logger"
)

type Answerer interface {
	AnswerQuestion(ctx context.Context, question string) query.Answer
}

type Evaluator struct {
	engine Answerer
}

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

// DatasetItem is one question and what its answer should look like. Empty
// expectations are not checked.
type DatasetItem struct {
	Question       string `json:"question"`
	ExpectStatus   string `json:"expect_status"`
	ExpectContains string `json:"expect_contains"`
	Category       string `json:"category"`
}

type ItemResult struct {
	Item    DatasetItem
	Answer  query.Answer
	Matched bool
	Reason  string
}

type Report struct {
	TotalQuestions int
	AnsweredCount  int
	FailedCount    int
	FallbackCount  int
	CachedCount    int
	RepairedCount  int
	MatchedCount   int
	AvgAttempts    float64
	AvgLatencyMS   float64
	ByStatus       map[string]int
	Results        []ItemResult
}

func NewEvaluator(engine Answerer) *Evaluator {
	return &Evaluator{
		engine: engine,
	}
}

// Check compares an answer with the item's expectations.
func Check(item DatasetItem, ans query.Answer) (bool, string) {
	if item.ExpectStatus != "" && !strings.EqualFold(item.ExpectStatus, ans.Status) {
		return false, fmt.Sprintf("status %s, want %s", ans.Status, item.ExpectStatus)
	}
	if item.ExpectContains != "" && !strings.Contains(ans.Text, item.ExpectContains) {
		return false, fmt.Sprintf("answer does not contain %q", item.ExpectContains)
	}
	return true, ""
}

func (e *Evaluator) Run(ctx context.Context, dataset *Dataset) (*Report, error) {
	logger.Info("Running dataset evaluation", zap.Int("items", len(dataset.Items)))

	report := &Report{
		TotalQuestions: len(dataset.Items),
		ByStatus:       map[string]int{},
	}

	var totalAttempts, totalLatency int64
	for i, item := range dataset.Items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluation stopped after %d of %d items: %w", i, len(dataset.Items), err)
		}

		ans := e.engine.AnswerQuestion(ctx, item.Question)
		matched, reason := Check(item, ans)

		report.ByStatus[ans.Status]++
		if ans.Answered() {
			report.AnsweredCount++
		} else {
			report.FailedCount++
		}
		switch ans.Source {
		case models.SourceFallback:
			report.FallbackCount++
		case models.SourceRepaired:
			report.RepairedCount++
		}
		if ans.Cached {
			report.CachedCount++
		}
		if matched {
			report.MatchedCount++
		}
		totalAttempts += int64(ans.Attempts)
		totalLatency += ans.LatencyMS

		report.Results = append(report.Results, ItemResult{Item: item, Answer: ans, Matched: matched, Reason: reason})

		logger.Info("Evaluated item",
			zap.Int("index", i+1),
			zap.Int("total", len(dataset.Items)),
			zap.String("status", ans.Status),
			zap.Bool("matched", matched),
		)
	}

	if report.TotalQuestions > 0 {
		report.AvgAttempts = float64(totalAttempts) / float64(report.TotalQuestions)
		report.AvgLatencyMS = float64(totalLatency) / float64(report.TotalQuestions)
	}

	logger.Info("Dataset evaluation completed",
		zap.Int("total", report.TotalQuestions),
		zap.Int("answered", report.AnsweredCount),
		zap.Int("matched", report.MatchedCount),
	)

	return report, nil
}

func LoadDataset(data []byte) (*Dataset, error) {
	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	for i, item := range dataset.Items {
		if strings.TrimSpace(item.Question) == "" {
			return nil, fmt.Errorf("dataset item %d has no question", i+1)
		}
	}
	return &dataset, nil
}

func LoadDatasetFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return LoadDataset(data)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func GenerateReport(report *Report) string {
	return fmt.Sprintf(`
Evaluation Report
=================

Total Questions: %d

Outcomes:
- Answered: %d (%.1f%%)
- Failed: %d (%.1f%%)
- Answered by fallback: %d
- Answered after repair: %d
- Served from cache: %d

Expectations met: %d of %d (%.1f%%)

Average attempts: %.2f
Average latency: %.0f ms
`,
		report.TotalQuestions,
		report.AnsweredCount, percent(report.AnsweredCount, report.TotalQuestions),
		report.FailedCount, percent(report.FailedCount, report.TotalQuestions),
		report.FallbackCount,
		report.RepairedCount,
		report.CachedCount,
		report.MatchedCount, report.TotalQuestions, percent(report.MatchedCount, report.TotalQuestions),
		report.AvgAttempts,
		report.AvgLatencyMS,
	)
}
