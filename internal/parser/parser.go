package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/promo-crawler/internal/models"
)

// TileSelector matches one product tile on listing and child pages.
const TileSelector = ".product-list-item"

// Selectors used to pull fields out of a tile. Each field resolves
// independently; a missing element only affects its own field.
type Selectors struct {
	Tile         string
	Name         string
	PriceNow     string
	PriceWas     string
	SalePrice    string
	Promotion    string
	Image        string
	Link         string
	Description  string
	ChildPage    string
	TrackingAttr string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Tile:         TileSelector,
		Name:         ".product-title h3",
		PriceNow:     ".non-strikethrough",
		PriceWas:     ".strikethrough",
		SalePrice:    ".kor-product-sale-price",
		Promotion:    ".promotion-short-title",
		Image:        "img.product-image",
		Link:         "a.product-title, .product-image-container a",
		Description:  ".Short-Description",
		ChildPage:    ".promotion-btn a.btn",
		TrackingAttr: "data-track-click",
	}
}

type Extractor struct {
	sel Selectors
}

func NewExtractor() *Extractor {
	return &Extractor{sel: DefaultSelectors()}
}

func NewExtractorWithSelectors(sel Selectors) *Extractor {
	return &Extractor{sel: sel}
}

// ExtractHTML parses a full page and returns one record per product tile.
func (e *Extractor) ExtractHTML(html string) ([]models.RawProductRecord, error) {
	return e.ExtractReader(strings.NewReader(html))
}

func (e *Extractor) ExtractReader(r io.Reader) ([]models.RawProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return e.ExtractDocument(doc), nil
}

func (e *Extractor) ExtractDocument(doc *goquery.Document) []models.RawProductRecord {
	tiles := doc.Find(e.sel.Tile)
	records := make([]models.RawProductRecord, 0, tiles.Length())
	tiles.Each(func(_ int, tile *goquery.Selection) {
		records = append(records, e.ExtractTile(tile))
	})
	return records
}

// ExtractTile never fails; fields whose element is missing stay Unknown.
func (e *Extractor) ExtractTile(tile *goquery.Selection) models.RawProductRecord {
	id, brand := e.tracking(tile)

	record := models.RawProductRecord{
		ID:           id,
		Brand:        brand,
		Name:         text(tile, e.sel.Name),
		Promotion:    text(tile, e.sel.Promotion),
		Description:  text(tile, e.sel.Description),
		ImageURL:     attr(tile, e.sel.Image, "src"),
		SourceURL:    attr(tile, e.sel.Link, "href"),
		ChildPageURL: attr(tile, e.sel.ChildPage, "href"),
	}

	if was := outerHTML(tile, e.sel.PriceWas); was.Known {
		record.PriceWasRaw = was
		record.PriceNowRaw = outerHTML(tile, e.sel.PriceNow)
	} else {
		record.PriceNowRaw = outerHTML(tile, e.sel.SalePrice)
		if !record.PriceNowRaw.Known {
			record.PriceNowRaw = outerHTML(tile, e.sel.PriceNow)
		}
	}

	return record
}

type trackClick struct {
	Products []struct {
		ID    json.RawMessage `json:"id"`
		Brand string          `json:"brand"`
	} `json:"products"`
}

// tracking reads id and brand from the analytics payload on the tile.
func (e *Extractor) tracking(tile *goquery.Selection) (id, brand models.Field) {
	payload, exists := tile.Attr(e.sel.TrackingAttr)
	if !exists || strings.TrimSpace(payload) == "" {
		return models.Unknown, models.Unknown
	}

	var data trackClick
	if err := json.Unmarshal([]byte(payload), &data); err != nil || len(data.Products) == 0 {
		return models.Unknown, models.Unknown
	}

	product := data.Products[0]
	if rawID := jsonScalar(product.ID); rawID != "" {
		id = models.Known(rawID)
	}
	if product.Brand != "" {
		brand = models.Known(product.Brand)
	}
	return id, brand
}

// jsonScalar accepts ids encoded as either strings or numbers.
func jsonScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func text(tile *goquery.Selection, selector string) models.Field {
	sel := tile.Find(selector).First()
	if sel.Length() == 0 {
		return models.Unknown
	}
	return models.Known(strings.TrimSpace(sel.Text()))
}

func attr(tile *goquery.Selection, selector, name string) models.Field {
	sel := tile.Find(selector).First()
	if sel.Length() == 0 {
		return models.Unknown
	}
	value, exists := sel.Attr(name)
	if !exists {
		return models.Unknown
	}
	return models.Known(value)
}

func outerHTML(tile *goquery.Selection, selector string) models.Field {
	sel := tile.Find(selector).First()
	if sel.Length() == 0 {
		return models.Unknown
	}
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return models.Unknown
	}
	return models.Known(html)
}
