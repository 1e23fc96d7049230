package models

// Field is a single extracted value. A zero Field means the source element
// was not found, which is distinct from an element that was found but empty.
type Field struct {
	Value string
	Known bool
}

// Unknown marks a field whose source element was absent.
var Unknown = Field{}

func Known(value string) Field {
	return Field{Value: value, Known: true}
}

func (f Field) Get() (string, bool) {
	return f.Value, f.Known
}

// RawProductRecord holds the extracted but unnormalized fields of one tile.
type RawProductRecord struct {
	ID           Field
	Brand        Field
	Name         Field
	PriceNowRaw  Field
	PriceWasRaw  Field
	Promotion    Field
	ImageURL     Field
	SourceURL    Field
	Description  Field
	ChildPageURL Field
}

// NormalizedProduct is the canonical product entry written to the output.
// Nullable fields are pointers so they serialize as null rather than being
// omitted.
type NormalizedProduct struct {
	ID            string               `json:"id"`
	Brand         *string              `json:"brand"`
	Title         *string              `json:"title"`
	Description   *string              `json:"description"`
	Promotion     *string              `json:"promotion"`
	PriceNow      *string              `json:"price_now"`
	PriceWas      *string              `json:"price_was"`
	ImageURL      *string              `json:"image_url"`
	SourceURL     *string              `json:"source_url"`
	ChildPageURL  *string              `json:"child_page_url"`
	StartDate     *Date                `json:"start_date"`
	EndDate       *Date                `json:"end_date"`
	ChildProducts []*NormalizedProduct `json:"child_products"`
}

// HasChildPage reports whether the product links to a child page.
func (p *NormalizedProduct) HasChildPage() bool {
	return p.ChildPageURL != nil && *p.ChildPageURL != ""
}

// AppendChildren attaches products discovered on the child page. Only the
// expansion task owning this parent may call it.
func (p *NormalizedProduct) AppendChildren(children []*NormalizedProduct) {
	p.ChildProducts = append(p.ChildProducts, children...)
}

// CountProducts returns parents plus their direct children.
func CountProducts(products []*NormalizedProduct) (parents, children int) {
	for _, p := range products {
		parents++
		children += len(p.ChildProducts)
	}
	return parents, children
}
