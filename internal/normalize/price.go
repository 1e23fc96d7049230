package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/promo-crawler/internal/models"
)

var decimalPriceRe = regexp.MustCompile(`(\d+\.\d{2})`)

const (
	eurosSelector     = ".price-euros span"
	centsSelector     = ".price-cents sup"
	salePriceSelector = ".kor-product-sale-price-value"
)

// Price turns price markup into a "euros.cents" string. The discounted layout
// renders euros and cents in separate elements; the catalog layout renders a
// single text value that may use a comma separator.
func Price(f models.Field) (string, bool) {
	raw, ok := f.Get()
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return scanPrice(raw)
	}

	euros := doc.Find(eurosSelector).First()
	cents := doc.Find(centsSelector).First()
	if euros.Length() > 0 && cents.Length() > 0 {
		e, eok := CleanText(euros.Text())
		c, cok := CleanText(cents.Text())
		if eok && cok {
			return e + "." + c, true
		}
	}

	if sale := doc.Find(salePriceSelector).First(); sale.Length() > 0 {
		return scanPrice(sale.Text())
	}

	return scanPrice(doc.Text())
}

func scanPrice(text string) (string, bool) {
	cleaned, ok := CleanText(text)
	if !ok {
		return "", false
	}
	match := decimalPriceRe.FindString(strings.ReplaceAll(cleaned, ",", "."))
	if match == "" {
		return "", false
	}
	return match, true
}
