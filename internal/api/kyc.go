package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kycfabric/gateway/internal/domain"
	"github.com/kycfabric/gateway/internal/verify"
)

type panRequest struct {
	PAN string `json:"pan"`
}

type rcRequest struct {
	RegNo string `json:"reg_no"`
}

type voterRequest struct {
	EpicNo string `json:"epic_no"`
}

type dlRequest struct {
	DLNo string `json:"dl_no"`
	DOB  string `json:"dob"`
}

type passportRequest struct {
	FileNumber string `json:"file_number"`
	DOB        string `json:"dob"`
	Name       string `json:"name"`
}

type aadhaarRequest struct {
	Aadhaar string `json:"aadhaar"`
}

type mobileLookupRequest struct {
	Mobile string `json:"mobile"`
}

type emailLookupRequest struct {
	Email string `json:"email"`
}

type employmentRequest struct {
	UAN          string `json:"uan"`
	PAN          string `json:"pan"`
	Mobile       string `json:"mobile"`
	DOB          string `json:"dob"`
	EmployerName string `json:"employer_name"`
	EmployeeName string `json:"employee_name"`
}

type gstinRequest struct {
	GSTIN string `json:"gstin"`
}

func decodeJSON(r *http.Request, dst any) bool {
	return json.NewDecoder(r.Body).Decode(dst) == nil
}

func (h *Handler) VerifyPAN(w http.ResponseWriter, r *http.Request) {
	var req panRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	pan := strings.TrimSpace(req.PAN)
	if pan == "" {
		respondWithError(w, http.StatusBadRequest, "pan is required")
		return
	}
	h.runVerification(w, r, domain.ServicePAN, map[string]string{"pan": pan})
}

func (h *Handler) VerifyRC(w http.ResponseWriter, r *http.Request) {
	var req rcRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	regNo := strings.TrimSpace(req.RegNo)
	if regNo == "" {
		respondWithError(w, http.StatusBadRequest, "reg_no is required")
		return
	}
	h.runVerification(w, r, domain.ServiceRC, map[string]string{"reg_no": regNo})
}

func (h *Handler) VerifyVoter(w http.ResponseWriter, r *http.Request) {
	var req voterRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	epicNo := strings.TrimSpace(req.EpicNo)
	if epicNo == "" {
		respondWithError(w, http.StatusBadRequest, "epic_no is required")
		return
	}
	h.runVerification(w, r, domain.ServiceVoter, map[string]string{"epic_no": epicNo})
}

func (h *Handler) VerifyDL(w http.ResponseWriter, r *http.Request) {
	var req dlRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	dlNo, dob := strings.TrimSpace(req.DLNo), strings.TrimSpace(req.DOB)
	if dlNo == "" || dob == "" {
		respondWithError(w, http.StatusBadRequest, "dl_no and dob are required")
		return
	}
	h.runVerification(w, r, domain.ServiceDL, map[string]string{"dl_no": dlNo, "dob": dob})
}

func (h *Handler) VerifyPassport(w http.ResponseWriter, r *http.Request) {
	var req passportRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	fileNumber := strings.TrimSpace(req.FileNumber)
	dob := strings.TrimSpace(req.DOB)
	name := strings.TrimSpace(req.Name)
	if fileNumber == "" || dob == "" || name == "" {
		respondWithError(w, http.StatusBadRequest, "file_number, dob and name are required")
		return
	}
	h.runVerification(w, r, domain.ServicePassport, map[string]string{
		"file_number": fileNumber, "dob": dob, "name": name,
	})
}

func (h *Handler) VerifyAadhaar(w http.ResponseWriter, r *http.Request) {
	var req aadhaarRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	aadhaar := strings.TrimSpace(req.Aadhaar)
	if aadhaar == "" {
		respondWithError(w, http.StatusBadRequest, "aadhaar is required")
		return
	}
	h.runVerification(w, r, domain.ServiceAadhaar, map[string]string{"aadhaar": aadhaar})
}

func (h *Handler) VerifyMobile(w http.ResponseWriter, r *http.Request) {
	var req mobileLookupRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	mobile := strings.TrimSpace(req.Mobile)
	if mobile == "" {
		respondWithError(w, http.StatusBadRequest, "mobile is required")
		return
	}
	h.runVerification(w, r, domain.ServiceMobileLookup, map[string]string{"mobile": mobile})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req emailLookupRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		respondWithError(w, http.StatusBadRequest, "email is required")
		return
	}
	h.runVerification(w, r, domain.ServiceEmailLookup, map[string]string{"email": email})
}

func (h *Handler) VerifyEmploymentLatest(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.employmentFields(w, r)
	if !ok {
		return
	}
	h.runVerification(w, r, domain.ServiceEmploymentLatest, fields)
}

func (h *Handler) VerifyEmploymentHistory(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.employmentFields(w, r)
	if !ok {
		return
	}
	h.runVerification(w, r, domain.ServiceEmploymentHistory, fields)
}

// employmentFields decodes the shared employment request. Any single
// identifier is enough to attempt a lookup.
func (h *Handler) employmentFields(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	var req employmentRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return nil, false
	}
	fields := map[string]string{
		"uan":           strings.TrimSpace(req.UAN),
		"pan":           strings.TrimSpace(req.PAN),
		"mobile":        strings.TrimSpace(req.Mobile),
		"dob":           strings.TrimSpace(req.DOB),
		"employer_name": strings.TrimSpace(req.EmployerName),
		"employee_name": strings.TrimSpace(req.EmployeeName),
	}
	for _, v := range fields {
		if v != "" {
			return fields, true
		}
	}
	respondWithError(w, http.StatusBadRequest, "at least one identifier is required")
	return nil, false
}

func (h *Handler) VerifyGSTIN(w http.ResponseWriter, r *http.Request) {
	var req gstinRequest
	if !decodeJSON(r, &req) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	gstin := strings.TrimSpace(req.GSTIN)
	if gstin == "" {
		respondWithError(w, http.StatusBadRequest, "gstin is required")
		return
	}
	h.runVerification(w, r, domain.ServiceGSTIN, map[string]string{"gstin": gstin})
}

// runVerification drives the shared pipeline and translates its outcome
// into the response envelope.
func (h *Handler) runVerification(w http.ResponseWriter, r *http.Request, apiName string, fields map[string]string) {
	user, ok := UserFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	def, ok := h.registry.Get(apiName)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Unknown service")
		return
	}

	out, err := h.verifier.Verify(r.Context(), def, user.ID, fields)
	if err != nil {
		switch {
		case errors.Is(err, verify.ErrInsufficientCredits):
			respondWithError(w, http.StatusPaymentRequired, "Insufficient credits")
		default:
			h.log.WithError(err).WithField("api_name", apiName).Error("verification failed")
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	if out.HTTPStatus != http.StatusOK {
		respondFailure(w, out.HTTPStatus, out.Message)
		return
	}
	respondSuccess(w, http.StatusOK, out.Payload)
}
