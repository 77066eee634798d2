package masterdata

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrStaleLookup marks a lookup result that was superseded by a newer query
// before it resolved. Callers discard it instead of rendering it.
var ErrStaleLookup = errors.New("masterdata: lookup superseded")

// CodeStatus is the outcome of a product-code availability check.
type CodeStatus struct {
	Code      string `json:"code"`
	Available bool   `json:"available"`
	// TakenBy names the product currently holding the code, when any.
	TakenBy string `json:"taken_by,omitempty"`
}

// CodeChecker serves debounced product-code availability checks. Concurrent
// identical queries collapse into one repository call, and a result is only
// returned when no newer check has been issued in the meantime: the latest
// keystroke always wins, even when an older query resolves later.
type CodeChecker struct {
	repo   RepositoryPort
	group  singleflight.Group
	latest atomic.Uint64
}

// NewCodeChecker constructs CodeChecker.
func NewCodeChecker(repo RepositoryPort) *CodeChecker {
	return &CodeChecker{repo: repo}
}

// Check resolves availability for code. Returns ErrStaleLookup when a newer
// check was issued while this one was in flight.
func (c *CodeChecker) Check(ctx context.Context, code string) (CodeStatus, error) {
	if code == "" {
		return CodeStatus{}, errors.New("masterdata: code required")
	}
	seq := c.latest.Add(1)

	v, err, _ := c.group.Do(code, func() (any, error) {
		product, err := c.repo.FindProductByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return CodeStatus{Code: code, Available: true}, nil
			}
			return CodeStatus{}, err
		}
		return CodeStatus{Code: code, Available: false, TakenBy: product.Name}, nil
	})

	if c.latest.Load() != seq {
		return CodeStatus{}, ErrStaleLookup
	}
	if err != nil {
		return CodeStatus{}, err
	}
	return v.(CodeStatus), nil
}
