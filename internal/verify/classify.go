package verify

import (
	"net/http"

	"github.com/kycfabric/gateway/internal/domain"
)

// ClassifyFunc maps an upstream reply to a terminal transaction status.
// httpStatus is the HTTP code of the reply; providerCode is the provider's
// own status_code field, 0 when the body carries none.
type ClassifyFunc func(httpStatus, providerCode int) domain.Status

// classifyIdentity covers the document APIs that report record matches via
// the body status_code: 100 and 101 are full and partial matches, 102 means
// no record exists. Used by PAN, driving licence and passport.
func classifyIdentity(httpStatus, providerCode int) domain.Status {
	switch httpStatus {
	case http.StatusOK:
		switch providerCode {
		case 100, 101:
			return domain.StatusFound
		case 102:
			return domain.StatusNotFound
		default:
			return domain.StatusError
		}
	case http.StatusBadRequest:
		return domain.StatusBadRequest
	}
	return domain.StatusError
}

// classifyAadhaar extends the identity mapping with the provider's
// maintenance-window signal.
func classifyAadhaar(httpStatus, providerCode int) domain.Status {
	if httpStatus == http.StatusServiceUnavailable {
		return domain.StatusSourceDown
	}
	return classifyIdentity(httpStatus, providerCode)
}

// classifyVoter is the identity mapping without the partial-match code;
// the electoral roll source never reports 101.
func classifyVoter(httpStatus, providerCode int) domain.Status {
	switch httpStatus {
	case http.StatusOK:
		switch providerCode {
		case 100:
			return domain.StatusFound
		case 102:
			return domain.StatusNotFound
		default:
			return domain.StatusError
		}
	case http.StatusBadRequest:
		return domain.StatusBadRequest
	}
	return domain.StatusError
}

// classifyEmployment maps the EPFO-backed employment APIs, where 101 means
// the request identifiers were unusable rather than a partial match.
func classifyEmployment(httpStatus, providerCode int) domain.Status {
	switch httpStatus {
	case http.StatusOK:
		switch providerCode {
		case 100:
			return domain.StatusFound
		case 101:
			return domain.StatusBadRequest
		case 102:
			return domain.StatusNotFound
		default:
			return domain.StatusError
		}
	case http.StatusBadRequest:
		return domain.StatusBadRequest
	}
	return domain.StatusError
}

// classifyRC maps the vehicle registration API, which signals outcomes
// purely through HTTP codes.
func classifyRC(httpStatus, _ int) domain.Status {
	switch httpStatus {
	case http.StatusOK:
		return domain.StatusFound
	case http.StatusPartialContent:
		return domain.StatusNotFound
	case http.StatusBadRequest:
		return domain.StatusBadRequest
	case http.StatusTooManyRequests:
		return domain.StatusTooManyRequests
	}
	return domain.StatusError
}

// classifyContactLookup maps the mobile and email footprint APIs. A 206
// means the digital footprint came back incomplete and is surfaced as its
// own status rather than folded into NOT_FOUND.
func classifyContactLookup(httpStatus, _ int) domain.Status {
	switch httpStatus {
	case http.StatusOK:
		return domain.StatusFound
	case http.StatusPartialContent:
		return domain.StatusPartialContent
	case http.StatusBadRequest:
		return domain.StatusBadRequest
	case http.StatusTooManyRequests:
		return domain.StatusTooManyRequests
	case http.StatusServiceUnavailable:
		return domain.StatusSourceDown
	}
	return domain.StatusError
}

// classifyGSTIN maps the scraped GST portal, where a plain 404 is the
// no-record signal.
func classifyGSTIN(httpStatus, _ int) domain.Status {
	switch httpStatus {
	case http.StatusOK:
		return domain.StatusFound
	case http.StatusBadRequest:
		return domain.StatusBadRequest
	case http.StatusNotFound:
		return domain.StatusNotFound
	case http.StatusTooManyRequests:
		return domain.StatusTooManyRequests
	case http.StatusServiceUnavailable:
		return domain.StatusSourceDown
	}
	return domain.StatusError
}
