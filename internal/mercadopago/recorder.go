package mercadopago

import (
	"context"
	"errors"
	"sync"

	"github.com/stremovskyy/recorder"
	"go.uber.org/zap"
)

// ErrExchangeNotFound is returned by LogRecorder lookups for request ids it
// does not hold, either never seen or already evicted.
var ErrExchangeNotFound = errors.New("exchange not recorded")

const maxLoggedBody = 2048

type exchange struct {
	request  []byte
	response []byte
	tags     map[string]string
}

// LogRecorder writes provider exchanges to a zap logger at debug level and
// keeps the most recent ones in memory for lookup.
type LogRecorder struct {
	logger *zap.Logger
	limit  int

	mu        sync.Mutex
	order     []string
	exchanges map[string]*exchange
}

var _ recorder.Recorder = (*LogRecorder)(nil)

// NewLogRecorder keeps up to limit exchanges; older ones are evicted first.
func NewLogRecorder(logger *zap.Logger, limit int) *LogRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 100
	}
	return &LogRecorder{
		logger:    logger,
		limit:     limit,
		exchanges: make(map[string]*exchange),
	}
}

func (r *LogRecorder) RecordRequest(_ context.Context, _ *string, requestID string, body []byte, tags map[string]string) error {
	r.logger.Debug("provider request",
		zap.String("request_id", requestID), zap.Any("tags", tags), zap.ByteString("body", clip(body)))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(requestID, tags).request = append([]byte(nil), body...)
	return nil
}

func (r *LogRecorder) RecordResponse(_ context.Context, _ *string, requestID string, body []byte, tags map[string]string) error {
	r.logger.Debug("provider response",
		zap.String("request_id", requestID), zap.Any("tags", tags), zap.ByteString("body", clip(body)))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(requestID, tags).response = append([]byte(nil), body...)
	return nil
}

func (r *LogRecorder) RecordError(_ context.Context, _ *string, requestID string, err error, tags map[string]string) error {
	r.logger.Debug("provider exchange failed",
		zap.String("request_id", requestID), zap.Any("tags", tags), zap.Error(err))
	return nil
}

func (r *LogRecorder) RecordMetrics(_ context.Context, _ *string, requestID string, metrics map[string]string, tags map[string]string) error {
	r.logger.Debug("provider metrics",
		zap.String("request_id", requestID), zap.Any("metrics", metrics), zap.Any("tags", tags))
	return nil
}

func (r *LogRecorder) GetRequest(_ context.Context, requestID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.exchanges[requestID]
	if !ok || ex.request == nil {
		return nil, ErrExchangeNotFound
	}
	return ex.request, nil
}

func (r *LogRecorder) GetResponse(_ context.Context, requestID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.exchanges[requestID]
	if !ok || ex.response == nil {
		return nil, ErrExchangeNotFound
	}
	return ex.response, nil
}

// FindByTag returns the ids of held exchanges carrying tag as a key or value,
// oldest first.
func (r *LogRecorder) FindByTag(_ context.Context, tag string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, id := range r.order {
		for k, v := range r.exchanges[id].tags {
			if k == tag || v == tag {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

// Async is not supported.
func (r *LogRecorder) Async() recorder.AsyncRecorder {
	return nil
}

// entry must be called with mu held.
func (r *LogRecorder) entry(requestID string, tags map[string]string) *exchange {
	if ex, ok := r.exchanges[requestID]; ok {
		return ex
	}
	if len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.exchanges, oldest)
	}
	ex := &exchange{tags: tags}
	r.exchanges[requestID] = ex
	r.order = append(r.order, requestID)
	return ex
}

func clip(b []byte) []byte {
	if len(b) > maxLoggedBody {
		return b[:maxLoggedBody]
	}
	return b
}
