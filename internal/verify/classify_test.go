package verify

import (
	"testing"

	"github.com/kycfabric/gateway/internal/domain"
)

func TestClassifyIdentity(t *testing.T) {
	tests := []struct {
		name         string
		httpStatus   int
		providerCode int
		want         domain.Status
	}{
		{"full match", 200, 100, domain.StatusFound},
		{"partial match", 200, 101, domain.StatusFound},
		{"no record", 200, 102, domain.StatusNotFound},
		{"unknown body code", 200, 0, domain.StatusError},
		{"bad request", 400, 0, domain.StatusBadRequest},
		{"rate limited", 429, 0, domain.StatusError},
		{"server error", 500, 100, domain.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyIdentity(tt.httpStatus, tt.providerCode); got != tt.want {
				t.Errorf("classifyIdentity(%d, %d) = %s, want %s", tt.httpStatus, tt.providerCode, got, tt.want)
			}
		})
	}
}

func TestClassifyAadhaar(t *testing.T) {
	tests := []struct {
		name         string
		httpStatus   int
		providerCode int
		want         domain.Status
	}{
		{"full match", 200, 100, domain.StatusFound},
		{"no record", 200, 102, domain.StatusNotFound},
		{"bad request", 400, 0, domain.StatusBadRequest},
		{"maintenance window", 503, 0, domain.StatusSourceDown},
		{"server error", 500, 0, domain.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyAadhaar(tt.httpStatus, tt.providerCode); got != tt.want {
				t.Errorf("classifyAadhaar(%d, %d) = %s, want %s", tt.httpStatus, tt.providerCode, got, tt.want)
			}
		})
	}
}

func TestClassifyVoter(t *testing.T) {
	tests := []struct {
		name         string
		httpStatus   int
		providerCode int
		want         domain.Status
	}{
		{"match", 200, 100, domain.StatusFound},
		{"partial code not recognised", 200, 101, domain.StatusError},
		{"no record", 200, 102, domain.StatusNotFound},
		{"bad request", 400, 0, domain.StatusBadRequest},
		{"server error", 502, 0, domain.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyVoter(tt.httpStatus, tt.providerCode); got != tt.want {
				t.Errorf("classifyVoter(%d, %d) = %s, want %s", tt.httpStatus, tt.providerCode, got, tt.want)
			}
		})
	}
}

func TestClassifyEmployment(t *testing.T) {
	tests := []struct {
		name         string
		httpStatus   int
		providerCode int
		want         domain.Status
	}{
		{"record found", 200, 100, domain.StatusFound},
		{"unusable identifiers", 200, 101, domain.StatusBadRequest},
		{"no record", 200, 102, domain.StatusNotFound},
		{"unknown body code", 200, 103, domain.StatusError},
		{"bad request", 400, 0, domain.StatusBadRequest},
		{"server error", 500, 0, domain.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyEmployment(tt.httpStatus, tt.providerCode); got != tt.want {
				t.Errorf("classifyEmployment(%d, %d) = %s, want %s", tt.httpStatus, tt.providerCode, got, tt.want)
			}
		})
	}
}

func TestClassifyRC(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
		want       domain.Status
	}{
		{"found", 200, domain.StatusFound},
		{"no record", 206, domain.StatusNotFound},
		{"bad request", 400, domain.StatusBadRequest},
		{"rate limited", 429, domain.StatusTooManyRequests},
		{"server error", 500, domain.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRC(tt.httpStatus, 0); got != tt.want {
				t.Errorf("classifyRC(%d) = %s, want %s", tt.httpStatus, got, tt.want)
			}
		})
	}
}

func TestClassifyContactLookup(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
		want       domain.Status
	}{
		{"complete footprint", 200, domain.StatusFound},
		{"incomplete footprint", 206, domain.StatusPartialContent},
		{"bad request", 400, domain.StatusBadRequest},
		{"rate limited", 429, domain.StatusTooManyRequests},
		{"source down", 503, domain.StatusSourceDown},
		{"server error", 500, domain.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyContactLookup(tt.httpStatus, 0); got != tt.want {
				t.Errorf("classifyContactLookup(%d) = %s, want %s", tt.httpStatus, got, tt.want)
			}
		})
	}
}

func TestClassifyGSTIN(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
		want       domain.Status
	}{
		{"found", 200, domain.StatusFound},
		{"bad request", 400, domain.StatusBadRequest},
		{"no record", 404, domain.StatusNotFound},
		{"rate limited", 429, domain.StatusTooManyRequests},
		{"portal down", 503, domain.StatusSourceDown},
		{"server error", 500, domain.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyGSTIN(tt.httpStatus, 0); got != tt.want {
				t.Errorf("classifyGSTIN(%d) = %s, want %s", tt.httpStatus, got, tt.want)
			}
		})
	}
}
