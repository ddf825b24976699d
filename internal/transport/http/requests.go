package httptransport

import (
	"strings"

	"rollcall/internal/outcome"
	dErrors "rollcall/pkg/domain-errors"
)

// AddStudentRequest is the body of POST /students. Address and name are
// parsed by the service; only presence is checked here.
type AddStudentRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Validate implements httputil.Validatable.
func (r *AddStudentRequest) Validate() error {
	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	return nil
}

// ConnectRequest is the body of POST /session.
type ConnectRequest struct {
	Address string `json:"address"`
}

func (r *ConnectRequest) Validate() error {
	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	return nil
}

// OutcomesResponse is the body of GET /outcomes.
type OutcomesResponse struct {
	Count    int             `json:"count"`
	Outcomes []outcome.Event `json:"outcomes"`
}

func invalidLimit() error {
	return dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
}
