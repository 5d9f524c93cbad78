package stream

import (
	"net/url"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

// PaginatorState is the position of a Paginator in the page chain.
type PaginatorState int

const (
	// AwaitingFirstPage is the initial state: no page has been seen yet
	AwaitingFirstPage PaginatorState = iota
	// HasNext means the last page carried a next link
	HasNext
	// Exhausted is terminal: the last page had no next link
	Exhausted
)

func (s PaginatorState) String() string {
	switch s {
	case AwaitingFirstPage:
		return "awaiting_first_page"
	case HasNext:
		return "has_next"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Paginator follows the server-supplied next link of each page. The token
// is opaque apart from having to be a URL whose query can be extracted.
type Paginator struct {
	state PaginatorState
	next  string
	seen  map[string]struct{}
}

// NewPaginator returns a paginator awaiting the first page.
func NewPaginator() *Paginator {
	return &Paginator{seen: make(map[string]struct{})}
}

// State returns the current state.
func (p *Paginator) State() PaginatorState {
	return p.state
}

// Done reports whether pagination is exhausted.
func (p *Paginator) Done() bool {
	return p.state == Exhausted
}

// Token returns the next-page token; empty before the first page and
// after exhaustion.
func (p *Paginator) Token() string {
	if p.state != HasNext {
		return ""
	}
	return p.next
}

// Advance consumes the next link of the page just received. A nil or
// empty link exhausts the paginator. A link that cannot be parsed, or one
// already followed in this run, is a pagination error and leaves the
// state unchanged.
func (p *Paginator) Advance(next *string) error {
	if p.state == Exhausted {
		return errors.New(errors.ErrorTypeInternal, "paginator advanced after exhaustion")
	}

	if next == nil || *next == "" {
		p.state = Exhausted
		p.next = ""
		return nil
	}

	if err := validateToken(*next); err != nil {
		return err
	}
	if _, dup := p.seen[*next]; dup {
		return errors.New(errors.ErrorTypePagination, "next link repeats a page already fetched").
			WithDetail("next", *next)
	}

	p.seen[*next] = struct{}{}
	p.next = *next
	p.state = HasNext
	return nil
}

func validateToken(token string) error {
	u, err := url.Parse(token)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypePagination, "malformed next link").
			WithDetail("next", token)
	}
	if _, err := url.ParseQuery(u.RawQuery); err != nil {
		return errors.Wrap(err, errors.ErrorTypePagination, "malformed next link query").
			WithDetail("next", token)
	}
	return nil
}
