package stream

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	"github.com/ajitpratap0/tap-leaflink/pkg/logger"
	"github.com/ajitpratap0/tap-leaflink/pkg/metrics"
	"github.com/ajitpratap0/tap-leaflink/pkg/observability"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 1024

// Getter issues authenticated GET requests. *clients.HTTPClient satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error)
}

// EmitFunc receives each record in server order. Returning an error stops
// the sync of the stream.
type EmitFunc func(ctx context.Context, rec Record) error

// Result summarizes a finished stream sync.
type Result struct {
	Stream  string
	Pages   int
	Records int
	// Watermark is the greater of the starting value and the highest
	// replication-key value emitted; nil for full-table streams and for
	// incremental streams that saw no value and had no start.
	Watermark interface{}
}

// Syncer drives the request, extract and paginate cycle for one stream at
// a time. Pages are fetched strictly in cursor order.
type Syncer struct {
	client  Getter
	baseURL string
}

// NewSyncer creates a syncer for the API rooted at baseURL.
func NewSyncer(client Getter, baseURL string) *Syncer {
	return &Syncer{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Sync fetches every page of desc, handing records to emit. starting is the
// resolved lower bound for incremental streams (prior state or start date)
// and may be nil. On error the partial Result is returned alongside it; the
// caller must not persist its watermark.
func (s *Syncer) Sync(ctx context.Context, desc Descriptor, starting interface{}, emit EmitFunc) (Result, error) {
	ctx = logger.ContextWithStream(ctx, desc.Name)
	log := logger.WithContext(ctx)

	result := Result{Stream: desc.Name}
	paginator := NewPaginator()

	var watermark *Watermark
	if desc.Incremental() {
		watermark = NewWatermark(starting)
	} else {
		starting = nil
	}

	log.Info("starting stream sync",
		zap.String("path", desc.Path),
		zap.String("replication_key", desc.ReplicationKey),
		zap.Any("starting_value", starting))

	for !paginator.Done() {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, errors.ErrorTypeConnection, "sync interrupted")
		}

		params, err := BuildParams(paginator.Token(), desc.ReplicationKey, starting)
		if err != nil {
			return result, err
		}

		page, err := s.fetch(ctx, desc, params.Encode())
		if err != nil {
			return result, err
		}
		result.Pages++
		metrics.PagesFetched.WithLabelValues(desc.Name).Inc()

		for rec, err := range Extract(page) {
			if err != nil {
				return result, err
			}
			if err := emit(ctx, rec); err != nil {
				return result, errors.Wrap(err, errors.ErrorTypeSink, "failed to emit record")
			}
			result.Records++
			metrics.RecordsEmitted.WithLabelValues(desc.Name).Inc()

			if watermark != nil {
				if v, ok := rec[desc.ReplicationKey]; ok && v != nil {
					watermark.Observe(v)
				} else {
					log.Debug("record without replication key value",
						zap.Int("page", result.Pages))
				}
			}
		}

		if err := paginator.Advance(page.Next); err != nil {
			return result, err
		}

		log.Debug("page processed",
			zap.Int("page", result.Pages),
			zap.Int("results", len(page.Results)),
			zap.Stringer("paginator", paginator.State()))
	}

	if watermark != nil {
		result.Watermark = watermark.Value()
	}

	log.Info("stream sync completed",
		zap.Int("pages", result.Pages),
		zap.Int("records", result.Records),
		zap.Any("watermark", result.Watermark))

	return result, nil
}

// fetch requests one page and decodes it.
func (s *Syncer) fetch(ctx context.Context, desc Descriptor, query string) (page *Page, err error) {
	ctx, span := observability.StartStreamSpan(ctx, desc.Name, "page")
	defer func() { observability.EndSpan(span, err) }()

	url := s.baseURL + desc.Path
	if query != "" {
		url += "?" + query
	}

	timer := metrics.NewTimer(desc.Name)
	resp, err := s.client.Get(ctx, url, nil)
	if err != nil {
		timer.ObserveRequest(0)
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "page request failed").
			WithDetail("stream", desc.Name)
	}
	defer resp.Body.Close()
	timer.ObserveRequest(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		errType := errors.ErrorTypeHTTP
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			errType = errors.ErrorTypeAuthentication
		}
		return nil, errors.Newf(errType, "unexpected status %d", resp.StatusCode).
			WithDetail("stream", desc.Name).
			WithDetail("status", resp.StatusCode).
			WithDetail("url", url).
			WithDetail("body", string(body))
	}

	page, err = DecodePage(resp.Body)
	if err != nil {
		return nil, err
	}
	return page, nil
}
