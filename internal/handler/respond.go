package handler

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	maxBodyBytes     = 1 << 20
)

// errBadBody is returned for request bodies that are not valid JSON of the
// expected shape.
var errBadBody = errors.New("Invalid request body")

// writeJSON writes the success envelope {statusCode, data, message, success}.
func writeJSON(w http.ResponseWriter, status int, message string, data func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("statusCode", func(e *jx.Encoder) { e.Int(status) })
		e.Field("data", data)
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		e.Field("success", func(e *jx.Encoder) { e.Bool(status < http.StatusBadRequest) })
	})
	write(w, status, e.Bytes())
}

// writeMessage writes an error envelope without field details.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeFailure(w, status, message, nil)
}

// fieldMessage is one {field: message} entry of the error envelope.
type fieldMessage struct {
	Field   string
	Message string
}

// writeFailure writes {statusCode, data:null, message, success:false,
// errors:[{field: message}]}.
func writeFailure(w http.ResponseWriter, status int, message string, details []fieldMessage) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("statusCode", func(e *jx.Encoder) { e.Int(status) })
		e.Field("data", func(e *jx.Encoder) { e.Null() })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("errors", func(e *jx.Encoder) {
			e.ArrStart()
			for _, d := range details {
				e.Obj(func(e *jx.Encoder) {
					e.Field(d.Field, func(e *jx.Encoder) { e.Str(d.Message) })
				})
			}
			e.ArrEnd()
		})
	})
	write(w, status, e.Bytes())
}

func write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// page is a 1-based pagination request.
type page struct {
	Page  int
	Limit int
}

func (p page) Offset() int { return (p.Page - 1) * p.Limit }

// parsePage reads ?page= and ?limit=, clamping both to sane bounds.
func parsePage(r *http.Request) page {
	p := page{Page: 1, Limit: defaultPageLimit}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 1 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = min(v, maxPageLimit)
	}
	return p
}

// encodePage writes a paginated payload. The list is stored under docsKey and
// its count under totalKey, e.g. "products" and "totalProducts".
func encodePage(p page, total int, docsKey, totalKey string, docs func(e *jx.Encoder)) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		totalPages := int(math.Ceil(float64(total) / float64(p.Limit)))
		e.Obj(func(e *jx.Encoder) {
			e.Field(docsKey, func(e *jx.Encoder) {
				e.ArrStart()
				docs(e)
				e.ArrEnd()
			})
			e.Field(totalKey, func(e *jx.Encoder) { e.Int(total) })
			e.Field("limit", func(e *jx.Encoder) { e.Int(p.Limit) })
			e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
			e.Field("totalPages", func(e *jx.Encoder) { e.Int(totalPages) })
			e.Field("serialNumberStartFrom", func(e *jx.Encoder) { e.Int(p.Offset() + 1) })
			e.Field("hasPrevPage", func(e *jx.Encoder) { e.Bool(p.Page > 1) })
			e.Field("hasNextPage", func(e *jx.Encoder) { e.Bool(p.Page < totalPages) })
			e.Field("prevPage", func(e *jx.Encoder) { optPage(e, p.Page > 1, p.Page-1) })
			e.Field("nextPage", func(e *jx.Encoder) { optPage(e, p.Page < totalPages, p.Page+1) })
		})
	}
}

func optPage(e *jx.Encoder, ok bool, n int) {
	if !ok {
		e.Null()
		return
	}
	e.Int(n)
}

// money encodes an amount as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func optString(e *jx.Encoder, s string) {
	if s == "" {
		e.Null()
		return
	}
	e.Str(s)
}

// decodeBody decodes a JSON object body field by field. An empty body is
// treated as {}.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errBadBody
	}
	if len(body) == 0 {
		return nil
	}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return errBadBody
	}
	if err := d.Obj(fn); err != nil {
		var fe fieldErr
		if errors.As(err, &fe) {
			return fe
		}
		return errBadBody
	}
	return nil
}

// fieldErr reports a body field with the wrong type or format.
type fieldErr struct {
	Field   string
	Message string
}

func (e fieldErr) Error() string { return e.Message }

// readString reads a string or null.
func readString(d *jx.Decoder, key string) (*string, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, fieldErr{Field: key, Message: key + " must be a string"}
	}
}

// readInt reads an integer or null.
func readInt(d *jx.Decoder, key string) (*int, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Number:
		n, err := d.Int()
		if err != nil {
			return nil, fieldErr{Field: key, Message: key + " must be an integer"}
		}
		return &n, nil
	default:
		return nil, fieldErr{Field: key, Message: key + " must be an integer"}
	}
}

// readBool reads a boolean or null.
func readBool(d *jx.Decoder, key string) (*bool, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return nil, err
		}
		return &b, nil
	default:
		return nil, fieldErr{Field: key, Message: key + " must be a boolean"}
	}
}

// readDecimal reads a number or a numeric string.
func readDecimal(d *jx.Decoder, key string) (*decimal.Decimal, error) {
	bad := fieldErr{Field: key, Message: key + " must be a number"}
	var raw string
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, bad
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, bad
		}
		raw = s
	default:
		return nil, bad
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, bad
	}
	return &v, nil
}

// readTime reads an RFC 3339 timestamp or a YYYY-MM-DD date.
func readTime(d *jx.Decoder, key string) (*time.Time, error) {
	s, err := readString(d, key)
	if err != nil || s == nil {
		return nil, err
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t, nil
		}
	}
	return nil, fieldErr{Field: key, Message: key + " must be an RFC 3339 timestamp"}
}
