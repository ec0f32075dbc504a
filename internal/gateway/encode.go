package gateway

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/order-composer/internal/backend"
	"github.com/xenking/order-composer/internal/domain/cart"
	"github.com/xenking/order-composer/internal/domain/catalog"
	"github.com/xenking/order-composer/internal/form"
)

// The gateway answers in the same envelope the renderer already speaks
// with the backend: {"data": ...} on success, {"error": true,
// "message", "data": {field: msg}} on failure.

func writeData(w http.ResponseWriter, lg *zap.Logger, status int, data func(e *jx.Encoder)) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", data)
	})
	writeJSON(w, lg, status, e.Bytes())
}

func writeError(w http.ResponseWriter, lg *zap.Logger, status int, message string, fields form.Errors) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		e.Field("data", func(e *jx.Encoder) { encodeFieldErrors(e, fields) })
	})
	writeJSON(w, lg, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, lg *zap.Logger, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		lg.Debug("write response", zap.Error(err))
	}
}

func encodeFieldErrors(e *jx.Encoder, fields form.Errors) {
	e.Obj(func(e *jx.Encoder) {
		for _, path := range fields.Paths() {
			msg, _ := fields.Get(path)
			e.Field(path, func(e *jx.Encoder) { e.Str(msg) })
		}
	})
}

func encodeCandidate(e *jx.Encoder, c catalog.Candidate) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("label", func(e *jx.Encoder) { e.Str(c.Label) })
		if c.HasPrice {
			e.Field("price", func(e *jx.Encoder) { encodeMoney(e, c.Price) })
		}
	})
}

func encodeLineItem(e *jx.Encoder, item cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product", func(e *jx.Encoder) { encodeCandidate(e, item.Product) })
		e.Field("unit_price", func(e *jx.Encoder) { encodeMoney(e, item.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, item.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, item.Total) })
	})
}

func encodeOrder(e *jx.Encoder, o *backend.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(o.Number) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
		e.Field("customer", func(e *jx.Encoder) { encodeCandidate(e, o.Customer) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("label", func(e *jx.Encoder) { e.Str(item.Label) })
						e.Field("unit_price", func(e *jx.Encoder) { encodeMoney(e, item.UnitPrice) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
						e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, item.Discount) })
						e.Field("total", func(e *jx.Encoder) { encodeMoney(e, item.Total) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, o.Subtotal) })
	})
}

// encodeMoney writes a decimal as a JSON number with its exact digits.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Raw(jx.Raw(d.String()))
}

// itemRequest is the decoded add-item form submission. Quantity and
// discount arrive as free text from form inputs; unparsable values are
// reported as field errors, not as malformed requests.
type itemRequest struct {
	product  catalog.Candidate
	quantity int
	discount decimal.Decimal
	errs     form.Errors
}

func decodeItemRequest(r io.Reader) (itemRequest, error) {
	req := itemRequest{errs: make(form.Errors)}
	body, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return req, err
	}

	var quantityRaw, discountRaw string
	d := jx.DecodeBytes(body)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product":
			p, err := decodePickedCandidate(d)
			if err != nil {
				return err
			}
			req.product = p
			return nil
		case "quantity":
			v, err := decodeLoose(d)
			if err != nil {
				return err
			}
			quantityRaw = v
			return nil
		case "discount":
			v, err := decodeLoose(d)
			if err != nil {
				return err
			}
			discountRaw = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, err
	}

	req.quantity, err = strconv.Atoi(strings.TrimSpace(quantityRaw))
	if err != nil {
		req.errs.Set("quantity", "quantity must be a whole number")
	}
	req.discount, err = decimal.NewFromString(strings.TrimSpace(discountRaw))
	if discountRaw == "" {
		req.discount = decimal.Zero
	} else if err != nil {
		req.errs.Set("discount", "discount must be a number")
	}
	return req, nil
}

// decodeCandidateBody reads a single picked candidate from a request
// body.
func decodeCandidateBody(r io.Reader) (catalog.Candidate, error) {
	body, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return catalog.Candidate{}, err
	}
	return decodePickedCandidate(jx.DecodeBytes(body))
}

func decodePickedCandidate(d *jx.Decoder) (catalog.Candidate, error) {
	var c catalog.Candidate
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			c.ID = v
			return nil
		case "label":
			v, err := d.Str()
			if err != nil {
				return err
			}
			c.Label = v
			return nil
		case "price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			raw, err := decodeLoose(d)
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return err
			}
			c.Price = price
			c.HasPrice = true
			return nil
		default:
			return d.Skip()
		}
	})
	return c, err
}

// decodeLoose reads a value that form layers may send as either a
// string or a number, returning its text.
func decodeLoose(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", d.Skip()
	}
}
