// Package protocol renders CAS validation responses.
package protocol

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	identitymodels "cas/internal/identity/models"
)

// Error codes carried by failure envelopes and error-page redirects.
const (
	CodeMissingService = "MISSING_SERVICE"
	CodeDenied         = "DENIED"
	CodeInvalidTicket  = "INVALID_TICKET"
	CodeInvalidRequest = "INVALID_REQUEST"
)

// Namespace is the CAS XML namespace.
const Namespace = "http://www.yale.edu/tp/cas"

// Format selects the validation response encoding.
type Format int

const (
	FormatXML Format = iota
	FormatJSON
)

// NegotiateFormat picks JSON when the client asks for it by format=JSON or
// an Accept header listing application/json. XML is the protocol default.
func NegotiateFormat(r *http.Request) Format {
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		return FormatJSON
	}
	if strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json") {
		return FormatJSON
	}
	return FormatXML
}

// Attributes released to the service on success.
type Attributes struct {
	Admin bool     `json:"admin"`
	Roles []string `json:"roles"`
}

// Success is a validated identity.
type Success struct {
	User       string
	Attributes Attributes
}

// Failure is a refused validation.
type Failure struct {
	Code        string
	Description string
}

// Response is either a success or a failure.
type Response struct {
	Success *Success
	Failure *Failure
}

// NewSuccess builds a success response for identity.
func NewSuccess(identity *identitymodels.Identity) Response {
	roles := append([]string{}, identity.Roles...)
	return Response{Success: &Success{
		User:       identity.Username,
		Attributes: Attributes{Admin: identity.Admin, Roles: roles},
	}}
}

// InvalidTicket builds the uniform failure for any unredeemable ticket.
func InvalidTicket(token string) Response {
	return Response{Failure: &Failure{
		Code:        CodeInvalidTicket,
		Description: fmt.Sprintf("Ticket %s not recognized.", token),
	}}
}

// InvalidRequest builds the failure for missing ticket or service parameters.
func InvalidRequest() Response {
	return Response{Failure: &Failure{
		Code:        CodeInvalidRequest,
		Description: "Both ticket and service parameters are required.",
	}}
}

// Write renders resp in the given format. CAS clients expect 200 for
// failures as well as successes.
func Write(w http.ResponseWriter, format Format, resp Response) error {
	if format == FormatJSON {
		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
		w.WriteHeader(http.StatusOK)
		return json.NewEncoder(w).Encode(resp.jsonEnvelope())
	}
	w.Header().Set("Content-Type", "application/xml;charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	out, err := xml.MarshalIndent(resp.xmlEnvelope(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode cas response: %w", err)
	}
	_, err = w.Write(out)
	return err
}

type jsonEnvelope struct {
	ServiceResponse jsonServiceResponse `json:"serviceResponse"`
}

type jsonServiceResponse struct {
	Success *jsonSuccess `json:"authenticationSuccess,omitempty"`
	Failure *jsonFailure `json:"authenticationFailure,omitempty"`
}

type jsonSuccess struct {
	User       string     `json:"user"`
	Attributes Attributes `json:"attributes"`
}

type jsonFailure struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (r Response) jsonEnvelope() jsonEnvelope {
	var env jsonEnvelope
	if r.Success != nil {
		env.ServiceResponse.Success = &jsonSuccess{User: r.Success.User, Attributes: r.Success.Attributes}
	}
	if r.Failure != nil {
		env.ServiceResponse.Failure = &jsonFailure{Code: r.Failure.Code, Description: r.Failure.Description}
	}
	return env
}

// encoding/xml writes prefixed names verbatim, which is how CAS clients expect them.
type xmlEnvelope struct {
	XMLName xml.Name    `xml:"cas:serviceResponse"`
	NS      string      `xml:"xmlns:cas,attr"`
	Success *xmlSuccess `xml:"cas:authenticationSuccess,omitempty"`
	Failure *xmlFailure `xml:"cas:authenticationFailure,omitempty"`
}

type xmlSuccess struct {
	User       string        `xml:"cas:user"`
	Attributes xmlAttributes `xml:"cas:attributes"`
}

type xmlAttributes struct {
	Admin bool     `xml:"cas:admin"`
	Roles []string `xml:"cas:roles"`
}

type xmlFailure struct {
	Code        string `xml:"code,attr"`
	Description string `xml:",chardata"`
}

func (r Response) xmlEnvelope() xmlEnvelope {
	env := xmlEnvelope{NS: Namespace}
	if r.Success != nil {
		env.Success = &xmlSuccess{
			User:       r.Success.User,
			Attributes: xmlAttributes{Admin: r.Success.Attributes.Admin, Roles: r.Success.Attributes.Roles},
		}
	}
	if r.Failure != nil {
		env.Failure = &xmlFailure{Code: r.Failure.Code, Description: r.Failure.Description}
	}
	return env
}
