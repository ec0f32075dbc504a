package form

import (
	"strconv"
	"strings"
)

// scalarFields is the explicit table of known server field identifiers
// for the top-level order fields. Backends report either the wire name
// or the already-dotted form path; both resolve to the same local path.
var scalarFields = map[string]string{
	"customer_id": PathCustomerID,
	"customer.id": PathCustomerID,
	"customer":    PathCustomerID,
	"items":       PathItems,
}

// itemFields are the per-item wire fields the backend may reject.
var itemFields = map[string]string{
	"product_id": "product.id",
	"quantity":   "quantity",
	"discount":   "discount",
	"unit_price": "unitPrice",
}

// MapServerField resolves a server-reported field identifier to a local
// form path. Item fields arrive as "items.N.<field>"; everything else
// must be in the scalar table. Unknown identifiers return ok=false and
// are routed by the caller to the catch-all notification instead of
// being applied to an undefined path.
func MapServerField(key string) (string, bool) {
	if path, ok := scalarFields[key]; ok {
		return path, true
	}

	rest, ok := strings.CutPrefix(key, "items.")
	if !ok {
		return "", false
	}
	idxStr, field, ok := strings.Cut(rest, ".")
	if !ok {
		return "", false
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return "", false
	}
	local, ok := itemFields[field]
	if !ok {
		return "", false
	}
	return ItemField(idx, local), true
}

// FromServer converts a server field-rejection payload into local form
// errors. Keys that do not map to a known field are returned separately
// so the caller can surface them as a non-field notification.
func FromServer(fields map[string]string) (Errors, []string) {
	errs := make(Errors, len(fields))
	var unknown []string
	for key, msg := range fields {
		path, ok := MapServerField(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		errs.Set(path, msg)
	}
	return errs, unknown
}
