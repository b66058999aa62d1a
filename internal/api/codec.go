package api

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/thriftmarket/internal/domain/order"
	"github.com/xenking/thriftmarket/internal/domain/product"
)

// List is one page of a list endpoint.
type List[T any] struct {
	Items []T
	Total int
}

type healthResponse struct {
	OK bool
}

func (h *healthResponse) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "ok":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "ok")
			}
			h.OK = v
			return nil
		default:
			return d.Skip()
		}
	})
}

// decodeList decodes {"items": [...], "total": n}. A missing total is zero
// and null items are an empty page.
func decodeList[T any](d *jx.Decoder, item func(*jx.Decoder) (T, error)) (List[T], error) {
	var out List[T]
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				v, err := item(d)
				if err != nil {
					return errors.Wrapf(err, "item %d", len(out.Items))
				}
				out.Items = append(out.Items, v)
				return nil
			})
		case "total":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "total")
			}
			out.Total = v
			return nil
		default:
			return d.Skip()
		}
	})
	return out, err
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Int64()
		case "seller_id":
			p.SellerID, err = optInt64(d)
		case "title":
			p.Title, err = optStr(d)
		case "description":
			p.Description, err = optStr(d)
		case "price":
			p.Price, err = decodeDecimal(d)
		case "status":
			var s string
			s, err = optStr(d)
			p.Status = product.Status(s)
		case "cover_image_url":
			p.CoverImageURL, err = optStr(d)
		case "created_at":
			p.CreatedAt, err = optTime(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	return p, err
}

func decodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			o.ID, err = d.Int64()
		case "buyer_id":
			o.BuyerID, err = optInt64(d)
		case "seller_id":
			o.SellerID, err = optInt64(d)
		case "product_id":
			o.ProductID, err = optInt64(d)
		case "status":
			var s string
			s, err = optStr(d)
			o.Status = order.Status(s)
		case "created_at":
			o.CreatedAt, err = optTime(d)
		case "updated_at":
			o.UpdatedAt, err = optTime(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	return o, err
}

// encodeProduct writes p in the same shape the API uses. It backs the export
// format.
func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		if p.SellerID != 0 {
			e.Field("seller_id", func(e *jx.Encoder) { e.Int64(p.SellerID) })
		}
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		if p.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		}
		e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(p.Price.String())) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Status)) })
		if p.CoverImageURL != "" {
			e.Field("cover_image_url", func(e *jx.Encoder) { e.Str(p.CoverImageURL) })
		}
		if !p.CreatedAt.IsZero() {
			e.Field("created_at", func(e *jx.Encoder) { e.Str(p.CreatedAt.Format(time.RFC3339)) })
		}
	})
}

// MarshalProduct encodes a product as a single JSON object.
func MarshalProduct(p product.Product) []byte {
	var e jx.Encoder
	encodeProduct(&e, p)
	return e.Bytes()
}

// int64Field is a JSON field holding an identifier in a request body.
type int64Field struct {
	name  string
	value int64
}

func encodeFields(fields ...int64Field) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		for _, f := range fields {
			e.Field(f.name, func(e *jx.Encoder) { e.Int64(f.value) })
		}
	})
	return e.Bytes()
}

func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func optInt64(d *jx.Decoder) (int64, error) {
	if d.Next() == jx.Null {
		return 0, d.Null()
	}
	return d.Int64()
}

// decodeDecimal accepts both JSON numbers and numeric strings, since decimal
// columns are commonly serialized as strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// optTime parses the timestamp formats seen from the API. Unparseable values
// are left zero instead of failing the whole record.
func optTime(d *jx.Decoder) (time.Time, error) {
	s, err := optStr(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, nil
}
