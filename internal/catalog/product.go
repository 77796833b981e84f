package catalog

const (
	// DefaultImage is served when an upstream record has no thumbnail.
	DefaultImage      = "/default-lemonade.jpg"
	DefaultIngredient = "lemon"

	minPrice  = 2.0
	maxPrice  = 5.0
	minLemons = 1
	maxLemons = 5
)

// Product is immutable once fetched. ID is the record's position in the
// upstream list, so it is only unique within one fetch.
type Product struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Lemons int     `json:"lemons"`
}
