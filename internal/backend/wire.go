package backend

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-composer/internal/domain/catalog"
)

// RejectionError is a structured server rejection: the backend answered
// with its error envelope. Fields carries per-field messages when the
// rejection is field-level; an empty Fields map means a general
// rejection with only a message.
type RejectionError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.Status, e.Message)
}

// Order is a server-confirmed order as redisplayed by the view screen.
type Order struct {
	ID        string
	Number    string
	CreatedAt time.Time
	Customer  catalog.Candidate
	Items     []OrderItem
	Subtotal  decimal.Decimal
}

// OrderItem is a frozen line-item snapshot inside a confirmed order.
type OrderItem struct {
	ProductID string
	Label     string
	UnitPrice decimal.Decimal
	Quantity  int
	Discount  decimal.Decimal
	Total     decimal.Decimal
}

// envelope is the decoded backend response: either a data payload or a
// populated rejection.
type envelope struct {
	data      jx.Raw
	err       bool
	message   string
	fields    map[string]string
	hasFields bool
}

// decodeEnvelope parses the backend's response envelope:
//
//	{"data": {...}}
//	{"error": true, "message": "...", "data": {"<field>": "<msg>", ...}}
//
// The data payload is captured raw; the caller decodes it once the
// envelope kind is known.
func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "error":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "error flag")
			}
			env.err = v
			return nil
		case "message":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "message")
			}
			env.message = v
			return nil
		case "data":
			raw, err := d.Raw()
			if err != nil {
				return errors.Wrap(err, "data")
			}
			env.data = raw
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}

	if env.err && len(env.data) > 0 && env.data.Type() == jx.Object {
		fields, err := decodeFieldMessages(env.data)
		if err != nil {
			return nil, errors.Wrap(err, "decode field messages")
		}
		env.fields = fields
		env.hasFields = true
	}
	return &env, nil
}

// decodeFieldMessages reads the rejection data object. Values are
// either a message string or an array of messages, of which the first
// is kept.
func decodeFieldMessages(raw jx.Raw) (map[string]string, error) {
	fields := make(map[string]string)
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			msg, err := d.Str()
			if err != nil {
				return err
			}
			fields[key] = msg
			return nil
		case jx.Array:
			first := true
			return d.Arr(func(d *jx.Decoder) error {
				if !first {
					return d.Skip()
				}
				msg, err := d.Str()
				if err != nil {
					return err
				}
				fields[key] = msg
				first = false
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return fields, err
}

// decodeCandidates reads {"items": [{"id","label","price"?}]} from a
// data payload.
func decodeCandidates(raw jx.Raw) ([]catalog.Candidate, error) {
	var out []catalog.Candidate
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			c, err := decodeCandidate(d)
			if err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	return out, err
}

func decodeCandidate(d *jx.Decoder) (catalog.Candidate, error) {
	var c catalog.Candidate
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := decodeStringOrInt(d)
			if err != nil {
				return errors.Wrap(err, "id")
			}
			c.ID = v
			return nil
		case "label":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "label")
			}
			c.Label = v
			return nil
		case "price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			c.Price = v
			c.HasPrice = true
			return nil
		default:
			return d.Skip()
		}
	})
	return c, err
}

// decodeOrder reads {"order": {...}} from a data payload.
func decodeOrder(raw jx.Raw) (*Order, error) {
	var o *Order
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "order" {
			return d.Skip()
		}
		decoded, err := decodeOrderObject(d)
		if err != nil {
			return err
		}
		o = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errors.New("order payload missing")
	}
	return o, nil
}

func decodeOrderObject(d *jx.Decoder) (*Order, error) {
	var o Order
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := decodeStringOrInt(d)
			if err != nil {
				return err
			}
			o.ID = v
			return nil
		case "order_number":
			v, err := decodeStringOrInt(d)
			if err != nil {
				return err
			}
			o.Number = v
			return nil
		case "created_at":
			v, err := d.Str()
			if err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				// Some backends emit a plain "2006-01-02 15:04:05".
				ts, err = time.Parse(time.DateTime, v)
				if err != nil {
					return errors.Wrap(err, "created_at")
				}
			}
			o.CreatedAt = ts
			return nil
		case "customer":
			c, err := decodeCandidate(d)
			if err != nil {
				return err
			}
			o.Customer = c
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeOrderItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, item)
				return nil
			})
		case "subtotal":
			v, err := decodeDecimal(d)
			if err != nil {
				return err
			}
			o.Subtotal = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func decodeOrderItem(d *jx.Decoder) (OrderItem, error) {
	var item OrderItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := decodeStringOrInt(d)
			if err != nil {
				return err
			}
			item.ProductID = v
			return nil
		case "label":
			v, err := d.Str()
			if err != nil {
				return err
			}
			item.Label = v
			return nil
		case "unit_price":
			v, err := decodeDecimal(d)
			if err != nil {
				return err
			}
			item.UnitPrice = v
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			item.Quantity = v
			return nil
		case "discount":
			v, err := decodeDecimal(d)
			if err != nil {
				return err
			}
			item.Discount = v
			return nil
		case "total":
			v, err := decodeDecimal(d)
			if err != nil {
				return err
			}
			item.Total = v
			return nil
		default:
			return d.Skip()
		}
	})
	return item, err
}

// decodeDecimal accepts monetary values sent as JSON numbers or as
// strings ("12.50") and keeps exact precision either way.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

// decodeStringOrInt tolerates identifiers sent as integers.
func decodeStringOrInt(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return d.Str()
}
