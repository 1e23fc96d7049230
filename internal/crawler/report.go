package crawler

import (
	"time"

	"github.com/maltedev/promo-crawler/internal/expand"
	"github.com/maltedev/promo-crawler/internal/models"
)

type TimeframeResult struct {
	Window   models.TimeframeWindow
	Products []*models.NormalizedProduct
	State    State
	FailedIn State
	Err      error
	Scrolls  int
	Tiles    int
	Children expand.Stats
}

func (r *TimeframeResult) fail(err error) {
	r.FailedIn = r.State
	r.State = StateFailed
	r.Err = err
	r.Products = []*models.NormalizedProduct{}
}

type Report struct {
	RunID     string
	State     State
	StartedAt time.Time
	Results   []*TimeframeResult
	Summary   Summary
}

// Result returns the result for key, or nil when that timeframe was not
// discovered.
func (r *Report) Result(key models.TimeframeKey) *TimeframeResult {
	for _, result := range r.Results {
		if result != nil && result.Window.Key == key {
			return result
		}
	}
	return nil
}

type Summary struct {
	RunID         string             `json:"run_id"`
	TotalProducts int                `json:"total_products"`
	Failures      int                `json:"failures"`
	Duration      time.Duration      `json:"duration"`
	Error         string             `json:"error,omitempty"`
	Timeframes    []TimeframeSummary `json:"timeframes"`
}

type TimeframeSummary struct {
	Key           models.TimeframeKey `json:"key"`
	State         State               `json:"state"`
	FailedIn      State               `json:"failed_in,omitempty"`
	Parents       int                 `json:"parents"`
	Children      int                 `json:"children"`
	ChildFailures int                 `json:"child_failures"`
	Error         string              `json:"error,omitempty"`
}

func (r *Report) finish(end time.Time, err error) {
	summary := Summary{
		RunID:      r.RunID,
		Duration:   end.Sub(r.StartedAt),
		Timeframes: make([]TimeframeSummary, 0, len(r.Results)),
	}
	if err != nil {
		summary.Error = err.Error()
	}

	for _, result := range r.Results {
		if result == nil {
			continue
		}
		parents, children := models.CountProducts(result.Products)
		ts := TimeframeSummary{
			Key:           result.Window.Key,
			State:         result.State,
			FailedIn:      result.FailedIn,
			Parents:       parents,
			Children:      children,
			ChildFailures: result.Children.Failed,
		}
		if result.Err != nil {
			ts.Error = result.Err.Error()
		}
		if result.State == StateFailed {
			summary.Failures++
		}
		summary.TotalProducts += parents + children
		summary.Timeframes = append(summary.Timeframes, ts)
	}

	r.Summary = summary
	r.State = StateReported
}
