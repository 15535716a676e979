package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/smithy-go"
)

// Kind groups provider failures so callers can tell abort-worthy errors
// from soft ones without matching on message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindAlreadyExists
	KindTransientNetwork
	KindProviderLimitExceeded
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindAlreadyExists:
		return "already exists"
	case KindTransientNetwork:
		return "transient network error"
	case KindProviderLimitExceeded:
		return "provider limit exceeded"
	default:
		return "unknown"
	}
}

var ErrBatchTooLarge = fmt.Errorf("delete batch exceeds %d keys", MaxDeleteBatch)

type Error struct {
	Op     string
	Bucket string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e.Bucket == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Bucket, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op, bucket string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Bucket: bucket, Kind: Classify(err), Err: err}
}

var (
	notFoundCodes = []string{"NotFound", "NoSuchBucket", "NoSuchKey", "NoSuchVersion"}

	permissionCodes = []string{
		"AccessDenied",
		"Forbidden",
		"AllAccessDisabled",
		"InvalidAccessKeyId",
		"SignatureDoesNotMatch",
		"InvalidToken",
		"ExpiredToken",
	}

	alreadyExistsCodes = []string{"BucketAlreadyExists", "BucketAlreadyOwnedByYou"}

	transientCodes = []string{
		"RequestTimeout",
		"RequestTimeTooSkewed",
		"SlowDown",
		"InternalError",
		"ServiceUnavailable",
	}

	limitCodes = []string{"TooManyBuckets", "MalformedXML", "EntityTooLarge"}
)

// transportPatterns match network failures that surface without an API code.
var transportPatterns = []string{
	"connection reset",
	"connection refused",
	"timeout",
	"temporary failure",
	"network is unreachable",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"broken pipe",
}

// Classify maps an SDK error onto a Kind: API error code first, then HTTP
// status, then transport error text. Only the innermost error's text is
// matched, since outer wrappers carry bucket names and object keys.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se *Error
	if errors.As(err, &se) && se.Kind != KindUnknown {
		return se.Kind
	}

	if errors.Is(err, ErrBatchTooLarge) {
		return KindProviderLimitExceeded
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnknown
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind := classifyCode(apiErr.ErrorCode()); kind != KindUnknown {
			return kind
		}
	}

	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		if kind := classifyStatus(respErr.HTTPStatusCode()); kind != KindUnknown {
			return kind
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientNetwork
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindTransientNetwork
	}

	errLower := strings.ToLower(rootCause(err).Error())
	for _, pattern := range transportPatterns {
		if strings.Contains(errLower, pattern) {
			return KindTransientNetwork
		}
	}

	return KindUnknown
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func IsKind(err error, kind Kind) bool {
	return Classify(err) == kind
}

func classifyCode(code string) Kind {
	switch {
	case code == "":
		return KindUnknown
	case slices.Contains(notFoundCodes, code):
		return KindNotFound
	case slices.Contains(permissionCodes, code):
		return KindPermissionDenied
	case slices.Contains(alreadyExistsCodes, code):
		return KindAlreadyExists
	case slices.Contains(transientCodes, code):
		return KindTransientNetwork
	case slices.Contains(limitCodes, code):
		return KindProviderLimitExceeded
	}
	return KindUnknown
}

func classifyStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindPermissionDenied
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindTransientNetwork
	}
	return KindUnknown
}
