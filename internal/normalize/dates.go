package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/promo-crawler/internal/models"
)

var dutchMonths = map[string]time.Month{
	"januari":   time.January,
	"februari":  time.February,
	"maart":     time.March,
	"april":     time.April,
	"mei":       time.May,
	"juni":      time.June,
	"juli":      time.July,
	"augustus":  time.August,
	"september": time.September,
	"oktober":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// DateRange parses labels such as "Deze week | 12 januari - 18 januari" in
// the current calendar year. Both results are nil when the label does not
// match. Both ends share that year, so a range spanning new year
// ("29 december - 4 januari") ends before it starts.
func (n *Normalizer) DateRange(label string) (start, end *models.Date) {
	s, e, ok := ParseDateRange(label, n.now().Year())
	if !ok {
		return nil, nil
	}
	return &s, &e
}

func ParseDateRange(label string, year int) (start, end models.Date, ok bool) {
	parts := strings.Split(label, "|")
	if len(parts) < 2 {
		return start, end, false
	}

	segment := strings.ReplaceAll(strings.TrimSpace(parts[1]), "–", "-")
	bounds := strings.Split(segment, "-")
	if len(bounds) != 2 {
		return start, end, false
	}

	start, ok = parseDayMonth(bounds[0], year)
	if !ok {
		return start, end, false
	}
	end, ok = parseDayMonth(bounds[1], year)
	if !ok {
		return start, end, false
	}
	return start, end, true
}

func parseDayMonth(s string, year int) (models.Date, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return models.Date{}, false
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return models.Date{}, false
	}
	month, ok := dutchMonths[strings.ToLower(fields[1])]
	if !ok {
		return models.Date{}, false
	}

	d := models.NewDate(year, month, day)
	// time.Date rolls 31 februari over into march
	if d.Day() != day || d.Month() != month {
		return models.Date{}, false
	}
	return d, true
}
