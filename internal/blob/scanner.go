package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// errPending keeps the retry loop going while the scanner has no verdict.
var errPending = errors.New("scan pending")

// Scanner waits for the malware scanner verdict of a quarantined blob.
type Scanner struct {
	store      Store
	maxRetries uint64
	delay      time.Duration
}

// NewScanner polls store up to maxRetries times, delay apart.
func NewScanner(store Store, maxRetries uint64, delay time.Duration) *Scanner {
	return &Scanner{store: store, maxRetries: maxRetries, delay: delay}
}

// AwaitResult polls until the blob has a verdict. A blob that is still not
// scanned when the retries are exhausted is reported as ScanNotScanned, which
// callers must treat like ScanMalicious.
func (s *Scanner) AwaitResult(ctx context.Context, name string) (ScanResult, error) {
	result := ScanNotScanned
	op := func() error {
		r, err := s.store.ScanResult(ctx, name)
		if err != nil {
			return backoff.Permanent(err)
		}
		result = r
		if r == ScanNotScanned {
			return errPending
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.delay), s.maxRetries), ctx)
	err := backoff.Retry(op, bo)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errPending):
		return ScanNotScanned, nil
	default:
		return ScanNotScanned, fmt.Errorf("await scan of %s: %w", name, err)
	}
}

// Safe reports whether the verdict allows the file to leave quarantine.
func (r ScanResult) Safe() bool {
	return r == ScanSafe
}
