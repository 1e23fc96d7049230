package normalize

import (
	"testing"
	"time"

	"github.com/maltedev/promo-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
}

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New("https://www.hoogvliet.com/", WithClock(fixedClock))
	require.NoError(t, err)
	return n
}

func testWindow() models.TimeframeWindow {
	start := models.NewDate(2024, time.January, 8)
	end := models.NewDate(2024, time.January, 14)
	return models.TimeframeWindow{
		Key:       models.TimeframeCurrent,
		URL:       "https://www.hoogvliet.com/browse?current",
		StartDate: &start,
		EndDate:   &end,
	}
}

func TestNewRejectsRelativeBase(t *testing.T) {
	_, err := New("/relative")
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    models.Field
		expected string
		ok       bool
	}{
		{"collapses whitespace", models.Known("  Verse \n\t melk  1L "), "Verse melk 1L", true},
		{"whitespace only", models.Known(" \n "), "", false},
		{"empty", models.Known(""), "", false},
		{"unknown", models.Unknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Text(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    models.Field
		expected string
		ok       bool
	}{
		{
			name:     "structured euros and cents",
			input:    models.Known(`<div class="price-euros"><span>3</span></div><div class="price-cents"><sup>49</sup></div>`),
			expected: "3.49",
			ok:       true,
		},
		{
			name:     "flattened text with comma",
			input:    models.Known("€ 3,49"),
			expected: "3.49",
			ok:       true,
		},
		{
			name:     "catalog sale price value",
			input:    models.Known(`<div class="kor-product-sale-price"><span class="kor-product-sale-price-value">1,99</span> per stuk</div>`),
			expected: "1.99",
			ok:       true,
		},
		{
			name:     "euros without cents falls back to text",
			input:    models.Known(`<div class="price-euros"><span>2</span></div> 2,15`),
			expected: "2.15",
			ok:       true,
		},
		{
			name:  "no decimal pattern",
			input: models.Known("2 halen 1 betalen"),
			ok:    false,
		},
		{
			name:  "unknown",
			input: models.Unknown,
			ok:    false,
		},
		{
			name:  "blank",
			input: models.Known("   "),
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Price(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name  string
		label string
		start string
		end   string
		ok    bool
	}{
		{"current week", "Deze week | 12 januari - 18 januari", "2024-01-12", "2024-01-18", true},
		{"segment only", "| 12 januari - 18 januari", "2024-01-12", "2024-01-18", true},
		{"en dash and case", "Volgende week | 29 Januari – 4 Februari", "2024-01-29", "2024-02-04", true},
		{"unknown month", "Deze week | 12 janvier - 18 janvier", "", "", false},
		{"no pipe", "12 januari - 18 januari", "", "", false},
		{"no range", "Deze week | 12 januari", "", "", false},
		{"impossible day", "Deze week | 31 februari - 2 maart", "", "", false},
		{"non numeric day", "Deze week | twaalf januari - 18 januari", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := ParseDateRange(tt.label, 2024)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.start, start.String())
			assert.Equal(t, tt.end, end.String())
		})
	}
}

func TestParseDateRangeAcrossNewYearKeepsOneYear(t *testing.T) {
	start, end, ok := ParseDateRange("Deze week | 29 december - 4 januari", 2024)
	require.True(t, ok)
	assert.Equal(t, "2024-12-29", start.String())
	assert.Equal(t, "2024-01-04", end.String())
	assert.True(t, end.Before(start.Time))
}

func TestDateRangeUsesCurrentYear(t *testing.T) {
	n := newTestNormalizer(t)

	start, end := n.DateRange("Deze week | 12 januari - 18 januari")
	require.NotNil(t, start)
	require.NotNil(t, end)
	assert.Equal(t, "2024-01-12", start.String())
	assert.Equal(t, "2024-01-18", end.String())

	start, end = n.DateRange("Deze week | 12 foo - 18 januari")
	assert.Nil(t, start)
	assert.Nil(t, end)
}

func TestURL(t *testing.T) {
	n := newTestNormalizer(t)

	got, ok := n.URL(models.Known("/INTERSHOP/static/image.jpg"))
	require.True(t, ok)
	assert.Equal(t, "https://www.hoogvliet.com/INTERSHOP/static/image.jpg", got)

	got, ok = n.URL(models.Known("https://cdn.example.com/a.png"))
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/a.png", got)

	_, ok = n.URL(models.Unknown)
	assert.False(t, ok)
}

func TestNormalizeAbsentFields(t *testing.T) {
	n := newTestNormalizer(t)
	window := models.TimeframeWindow{Key: models.TimeframeUpcoming}

	product, ok := n.Normalize(models.RawProductRecord{ID: models.Known("123")}, window)
	require.True(t, ok)

	assert.Equal(t, "123", product.ID)
	assert.Nil(t, product.Brand)
	assert.Nil(t, product.Title)
	assert.Nil(t, product.Description)
	assert.Nil(t, product.Promotion)
	assert.Nil(t, product.PriceNow)
	assert.Nil(t, product.PriceWas)
	assert.Nil(t, product.ImageURL)
	assert.Nil(t, product.SourceURL)
	assert.Nil(t, product.ChildPageURL)
	assert.Nil(t, product.StartDate)
	assert.Nil(t, product.EndDate)
	assert.NotNil(t, product.ChildProducts)
	assert.Empty(t, product.ChildProducts)
}

func TestProcess(t *testing.T) {
	n := newTestNormalizer(t)
	window := testWindow()

	raws := []models.RawProductRecord{
		{
			ID:           models.Known("100"),
			Brand:        models.Known("Hoogvliet"),
			Name:         models.Known(" Halfvolle  melk "),
			PriceNowRaw:  models.Known("€ 1,09"),
			PriceWasRaw:  models.Known("€ 1,29"),
			Promotion:    models.Known("2e halve prijs"),
			ImageURL:     models.Known("/img/100.jpg"),
			SourceURL:    models.Known("/product/100"),
			ChildPageURL: models.Known("/promo/100"),
		},
		{ID: models.Unknown, Name: models.Known("no id")},
		{ID: models.Known("  "), Name: models.Known("blank id")},
		{ID: models.Known("100"), Name: models.Known("duplicate")},
		{ID: models.Known("200"), Name: models.Known("Kaas")},
	}

	products := n.Process(raws, window)
	require.Len(t, products, 2)

	first := products[0]
	assert.Equal(t, "100", first.ID)
	assert.Equal(t, "Halfvolle melk", *first.Title)
	assert.Equal(t, "1.09", *first.PriceNow)
	assert.Equal(t, "1.29", *first.PriceWas)
	assert.Equal(t, "https://www.hoogvliet.com/img/100.jpg", *first.ImageURL)
	assert.Equal(t, "https://www.hoogvliet.com/promo/100", *first.ChildPageURL)
	assert.Equal(t, "2024-01-08", first.StartDate.String())
	assert.Equal(t, "2024-01-14", first.EndDate.String())
	assert.Equal(t, "200", products[1].ID)
}

func TestProcessIsIdempotent(t *testing.T) {
	n := newTestNormalizer(t)
	window := testWindow()
	raws := []models.RawProductRecord{{
		ID:          models.Known("1"),
		Name:        models.Known("Appels"),
		PriceNowRaw: models.Known(`<div class="price-euros"><span>3</span></div><div class="price-cents"><sup>49</sup></div>`),
		ImageURL:    models.Known("a.jpg"),
	}}

	first := n.Process(raws, window)
	second := n.Process(raws, window)
	assert.Equal(t, first, second)

	// the window dates are copied, not shared
	first[0].StartDate.Time = first[0].StartDate.AddDate(0, 0, 1)
	assert.Equal(t, "2024-01-08", window.StartDate.String())
}
