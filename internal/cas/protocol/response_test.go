package protocol

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitymodels "cas/internal/identity/models"
)

// decoded is the format-neutral view both encodings must agree on.
type decoded struct {
	User    string
	Admin   bool
	Roles   []string
	Code    string
	Message string
}

type parsedXML struct {
	XMLName xml.Name `xml:"http://www.yale.edu/tp/cas serviceResponse"`
	Success *struct {
		User       string `xml:"http://www.yale.edu/tp/cas user"`
		Attributes struct {
			Admin bool     `xml:"http://www.yale.edu/tp/cas admin"`
			Roles []string `xml:"http://www.yale.edu/tp/cas roles"`
		} `xml:"http://www.yale.edu/tp/cas attributes"`
	} `xml:"http://www.yale.edu/tp/cas authenticationSuccess"`
	Failure *struct {
		Code        string `xml:"code,attr"`
		Description string `xml:",chardata"`
	} `xml:"http://www.yale.edu/tp/cas authenticationFailure"`
}

func render(t *testing.T, format Format, resp Response) (*httptest.ResponseRecorder, decoded) {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, Write(rec, format, resp))
	require.Equal(t, http.StatusOK, rec.Code)

	var out decoded
	if format == FormatJSON {
		var env jsonEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		if s := env.ServiceResponse.Success; s != nil {
			out = decoded{User: s.User, Admin: s.Attributes.Admin, Roles: s.Attributes.Roles}
		}
		if f := env.ServiceResponse.Failure; f != nil {
			out = decoded{Code: f.Code, Message: f.Description}
		}
		return rec, out
	}

	var env parsedXML
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &env))
	if s := env.Success; s != nil {
		out = decoded{User: s.User, Admin: s.Attributes.Admin, Roles: s.Attributes.Roles}
	}
	if f := env.Failure; f != nil {
		out = decoded{Code: f.Code, Message: f.Description}
	}
	return rec, out
}

func TestEncodingsCarryTheSameInformation(t *testing.T) {
	identity := &identitymodels.Identity{Username: "jane", Admin: true, Roles: []string{"ops", "dev"}}

	for name, resp := range map[string]Response{
		"success":         NewSuccess(identity),
		"invalid ticket":  InvalidTicket("ST-abc"),
		"invalid request": InvalidRequest(),
	} {
		t.Run(name, func(t *testing.T) {
			_, fromJSON := render(t, FormatJSON, resp)
			_, fromXML := render(t, FormatXML, resp)
			assert.Equal(t, fromJSON, fromXML)
		})
	}
}

func TestSuccessEnvelope(t *testing.T) {
	rec, out := render(t, FormatXML, NewSuccess(&identitymodels.Identity{Username: "jane", Roles: []string{"ops"}}))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, rec.Body.String(), `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">`)
	assert.Contains(t, rec.Body.String(), "<cas:user>jane</cas:user>")
	assert.Equal(t, decoded{User: "jane", Roles: []string{"ops"}}, out)
}

func TestFailureEnvelope(t *testing.T) {
	rec, out := render(t, FormatJSON, InvalidTicket("ST-abc"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, CodeInvalidTicket, out.Code)
	assert.Equal(t, "Ticket ST-abc not recognized.", out.Message)
	assert.NotContains(t, rec.Body.String(), "authenticationSuccess")
}

func TestNegotiateFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cas/serviceValidate", nil)
	assert.Equal(t, FormatXML, NegotiateFormat(req))

	req = httptest.NewRequest(http.MethodGet, "/cas/serviceValidate?format=JSON", nil)
	assert.Equal(t, FormatJSON, NegotiateFormat(req))

	req = httptest.NewRequest(http.MethodGet, "/cas/serviceValidate", nil)
	req.Header.Set("Accept", "text/html, application/json;q=0.9")
	assert.Equal(t, FormatJSON, NegotiateFormat(req))
}
