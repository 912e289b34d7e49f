package verify

import (
	"context"

	"github.com/kycfabric/gateway/internal/config"
	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/provider"
	"github.com/kycfabric/gateway/internal/scraper"
)

// billableDefault applies to every service except the contact lookups:
// a conclusive answer is billable whether or not a record was found.
var billableDefault = []domain.Status{domain.StatusFound, domain.StatusNotFound}

// billableOnFound applies to the contact lookups, which only charge for a
// complete digital footprint.
var billableOnFound = []domain.Status{domain.StatusFound}

// Registry holds the pipeline definition for every supported document type.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry wires each document type to its endpoint, classifier and
// billing rules.
func NewRegistry(client *provider.Client, gstin *scraper.GSTIN, eps config.ProviderEndpoints) *Registry {
	defs := []Definition{
		{
			APIName:  domain.ServicePAN,
			Fields:   []string{"pan"},
			Billable: billableDefault,
			Classify: classifyIdentity,
			Call:     jsonCall(client, provider.Endpoint{URL: eps.PANURL, Host: eps.PANHost}),
		},
		{
			APIName:  domain.ServiceRC,
			Fields:   []string{"reg_no"},
			Billable: billableDefault,
			Classify: classifyRC,
			Call:     jsonCall(client, provider.Endpoint{URL: eps.RCURL}),
		},
		{
			APIName:  domain.ServiceVoter,
			Fields:   []string{"epic_no"},
			Billable: billableDefault,
			Classify: classifyVoter,
			Call:     jsonCall(client, provider.Endpoint{URL: eps.VoterURL}),
		},
		{
			// Both fields identify one licence; a cached row must match both.
			APIName:  domain.ServiceDL,
			Fields:   []string{"dl_no", "dob"},
			Billable: billableDefault,
			Classify: classifyIdentity,
			Call:     jsonCall(client, provider.Endpoint{URL: eps.DLURL}),
		},
		{
			APIName:  domain.ServicePassport,
			Fields:   []string{"file_number", "dob", "name"},
			Billable: billableDefault,
			Classify: classifyIdentity,
			Call:     jsonCall(client, provider.Endpoint{URL: eps.PassportURL}),
		},
		{
			APIName:  domain.ServiceAadhaar,
			Fields:   []string{"aadhaar"},
			Billable: billableDefault,
			Classify: classifyAadhaar,
			Call:     jsonCall(client, provider.Endpoint{URL: eps.AadhaarURL}),
		},
		{
			APIName:     domain.ServiceMobileLookup,
			Fields:      []string{"mobile"},
			Billable:    billableOnFound,
			Classify:    classifyContactLookup,
			Call:        jsonCall(client, provider.Endpoint{URL: eps.MobileLookupURL}),
			PostProcess: attachConfidenceScores,
		},
		{
			APIName:     domain.ServiceEmailLookup,
			Fields:      []string{"email"},
			Billable:    billableOnFound,
			Classify:    classifyContactLookup,
			Call:        jsonCall(client, provider.Endpoint{URL: eps.EmailLookupURL}),
			PostProcess: attachConfidenceScores,
		},
		{
			// Any one identifier can locate an employment record, so the
			// cache matches on any provided field rather than all of them.
			APIName:            domain.ServiceEmploymentLatest,
			Fields:             []string{"uan", "pan", "mobile", "dob", "employer_name", "employee_name"},
			IdentifierPriority: []string{"uan", "dob", "pan", "mobile", "employer_name", "employee_name"},
			MatchAny:           true,
			Billable:           billableDefault,
			Classify:           classifyEmployment,
			Call:               jsonCall(client, provider.Endpoint{URL: eps.EmploymentLatestURL}),
		},
		{
			APIName:            domain.ServiceEmploymentHistory,
			Fields:             []string{"uan", "pan", "mobile", "dob", "employer_name", "employee_name"},
			IdentifierPriority: []string{"uan", "dob", "pan", "mobile", "employer_name", "employee_name"},
			MatchAny:           true,
			Billable:           billableDefault,
			Classify:           classifyEmployment,
			Call:               jsonCall(client, provider.Endpoint{URL: eps.EmploymentHistoryURL}),
		},
		{
			APIName:  domain.ServiceGSTIN,
			Fields:   []string{"gstin"},
			Billable: billableDefault,
			Classify: classifyGSTIN,
			Call: func(ctx context.Context, fields map[string]string) (*provider.Result, error) {
				return gstin.Fetch(ctx, fields["gstin"])
			},
		},
	}

	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.defs[d.APIName] = d
	}
	return r
}

// Get returns the definition for a service tag.
func (r *Registry) Get(apiName string) (Definition, bool) {
	d, ok := r.defs[apiName]
	return d, ok
}

// jsonCall adapts the shared provider client to one endpoint.
func jsonCall(client *provider.Client, ep provider.Endpoint) CallFunc {
	return func(ctx context.Context, fields map[string]string) (*provider.Result, error) {
		payload := make(map[string]any, len(fields))
		for k, v := range fields {
			payload[k] = v
		}
		return client.Verify(ctx, ep, payload)
	}
}
