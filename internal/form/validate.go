package form

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Draft mirrors the submit payload for local pre-submit validation.
// Failures here never reach the network.
type Draft struct {
	CustomerID string      `validate:"required"`
	Items      []DraftItem `validate:"min=1,dive"`
}

// DraftItem carries the validatable fields of one composed line item.
type DraftItem struct {
	ProductID string          `validate:"required"`
	Quantity  int             `validate:"min=1"`
	Discount  decimal.Decimal `validate:"dmin=0,dmax=100"`
}

// messages localizes validation failures per field path. Anything not
// listed falls back to a generic message.
var messages = map[string]string{
	PathCustomerID: "customer is required",
	PathItems:      "select at least one product",
	"product.id":   "product is required",
	"quantity":     "quantity must be at least 1",
	"discount":     "discount must be between 0 and 100",
}

// NewValidator returns a validator configured for draft validation:
// decimal.Decimal fields validate through dmin/dmax tags. The custom
// type func presents each decimal to validator as its string form, a
// basic kind it can traverse; the dmin/dmax validators parse that
// string back.
func NewValidator() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	decimalArg := func(fl validatorv10.FieldLevel) (decimal.Decimal, decimal.Decimal, bool) {
		if fl.Field().Kind() != reflect.String {
			return decimal.Decimal{}, decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, false
		}
		return d, bound, true
	}

	_ = v.RegisterValidation("dmin", func(fl validatorv10.FieldLevel) bool {
		d, bound, ok := decimalArg(fl)
		return ok && d.GreaterThanOrEqual(bound)
	})
	_ = v.RegisterValidation("dmax", func(fl validatorv10.FieldLevel) bool {
		d, bound, ok := decimalArg(fl)
		return ok && d.LessThanOrEqual(bound)
	})

	return v
}

// Validate runs local draft validation and returns its failures as form
// errors keyed by field path. A nil-free empty result means the draft
// may be submitted.
func Validate(v *validatorv10.Validate, d Draft) Errors {
	errs := make(Errors)
	err := v.Struct(d)
	if err == nil {
		return errs
	}

	vErrs, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		errs.Set(PathItems, "invalid order draft")
		return errs
	}

	for _, fe := range vErrs {
		path := translateNamespace(fe.Namespace())
		msg, ok := messages[messageKey(path)]
		if !ok {
			msg = "invalid value"
		}
		errs.Set(path, msg)
	}
	return errs
}

// translateNamespace converts a validator namespace such as
// "Draft.Items[0].Quantity" to the form path "items[0].quantity".
func translateNamespace(ns string) string {
	ns = strings.TrimPrefix(ns, "Draft.")
	r := strings.NewReplacer(
		"CustomerID", PathCustomerID,
		"Items", "items",
		"ProductID", "product.id",
		"Quantity", "quantity",
		"Discount", "discount",
	)
	return r.Replace(ns)
}

// messageKey strips the item index so per-item fields share one message.
func messageKey(path string) string {
	if i := strings.Index(path, "]."); i >= 0 {
		return path[i+2:]
	}
	return path
}
