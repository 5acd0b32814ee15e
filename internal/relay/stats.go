package relay

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/woowenjun99/CG4002-Evaluation-Server/logging/evaluation"
)

// Action classes scored separately at the end of a session.
const (
	ClassGun = "GUN"
	ClassAI  = "AI "
)

// tally accumulates the matched submissions of one action class.
type tally struct {
	class   string
	total   int
	matched int
	times   []decimal.Decimal
}

func newTally(class string, total int) *tally {
	return &tally{class: class, total: total}
}

func (t *tally) record(responseTime time.Duration) {
	t.matched++
	t.times = append(t.times, decimal.NewFromFloat(responseTime.Seconds()))
}

// mean and median of the matched response times in seconds. With nothing
// matched both fall back to the read timeout.
func (t *tally) stats(timeout time.Duration) (decimal.Decimal, decimal.Decimal) {
	if len(t.times) == 0 {
		fallback := decimal.NewFromFloat(timeout.Seconds())
		return fallback, fallback
	}
	sorted := append([]decimal.Decimal(nil), t.times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	sum := decimal.Zero
	for _, v := range sorted {
		sum = sum.Add(v)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(sorted))))

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
	}
	return mean, median
}

// summary renders the viewer line and the structured record of the class.
func (t *tally) summary(timeout time.Duration) (string, evaluation.SummaryPayload) {
	mean, median := t.stats(timeout)
	payload := evaluation.SummaryPayload{
		Class:        strings.TrimSpace(t.class),
		Matched:      t.matched,
		Total:        t.total,
		MeanResponse: mean.StringFixed(2),
		Median:       median.StringFixed(2),
	}
	text := fmt.Sprintf("%s-- accuracy=%d/%d; Response time (mean):%s (median):%s",
		t.class, t.matched, t.total, payload.MeanResponse, payload.Median)
	return text, payload
}
