package catalog

// ErrorKind classifies a catalog build failure.
type ErrorKind string

const (
	NoValidProducts ErrorKind = "no_valid_products"
	NoValidStock    ErrorKind = "no_valid_stock"
)

// CatalogError means a file parsed but yielded nothing usable.
type CatalogError struct {
	Kind    ErrorKind
	Skipped int
}

func (e *CatalogError) Error() string {
	switch e.Kind {
	case NoValidProducts:
		return "product file contains no valid product rows"
	case NoValidStock:
		return "stock file contains no valid stock rows"
	default:
		return "catalog build failed"
	}
}
