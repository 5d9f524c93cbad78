package stream

import (
	"bytes"
	"io"
	"iter"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
)

// Record is one API entity. Field values pass through untouched; numbers
// are kept as json.Number.
type Record map[string]interface{}

// Page is one decoded list response. Results holds the raw elements of
// the results array and is decoded one record at a time by Extract.
type Page struct {
	Results []jsonpool.RawMessage
	Next    *string
}

type rawPage struct {
	Results jsonpool.RawMessage `json:"results"`
	Next    jsonpool.RawMessage `json:"next"`
}

var null = []byte("null")

// DecodePage reads a page body. A missing or null results field yields
// a page with no records. next must be a string or null.
func DecodePage(r io.Reader) (*Page, error) {
	var raw rawPage
	dec := jsonpool.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode page")
	}

	page := &Page{}

	if len(raw.Results) > 0 && !bytes.Equal(raw.Results, null) {
		if err := jsonpool.Unmarshal(raw.Results, &page.Results); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "results is not an array")
		}
	}

	if len(raw.Next) > 0 && !bytes.Equal(raw.Next, null) {
		var next string
		if err := jsonpool.Unmarshal(raw.Next, &next); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypePagination, "next is not a string").
				WithDetail("next", string(raw.Next))
		}
		page.Next = &next
	}

	return page, nil
}

// Extract yields the page's records in order, decoding each element only
// when it is reached. An element that is not a JSON object stops the
// sequence with a data error.
func Extract(page *Page) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if page == nil {
			return
		}
		for i, raw := range page.Results {
			var rec Record
			if err := jsonpool.UnmarshalNumber(raw, &rec); err != nil || rec == nil {
				if err == nil {
					err = errors.New(errors.ErrorTypeData, "record is null")
				}
				yield(nil, errors.Wrap(err, errors.ErrorTypeData, "malformed record").
					WithDetail("index", i))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
