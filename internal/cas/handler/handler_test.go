package handler

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cas/internal/cas/service"
	identitymodels "cas/internal/identity/models"
	identitystore "cas/internal/identity/store"
	otpvalidator "cas/internal/otp"
	"cas/internal/platform/config"
	"cas/internal/registry"
	registrymodels "cas/internal/registry/models"
	registrystore "cas/internal/registry/store"
	"cas/internal/securecontext"
	"cas/internal/session"
	"cas/internal/ticket"
	ticketstore "cas/internal/ticket/store"
	"cas/pkg/platform/middleware/request"
	"cas/pkg/testutil"
)

const (
	systemDomain = "https://sso.example.com"
	appURL       = "https://app.example.com/home"
	otpSecret    = "JBSWY3DPEHPK3PXP"
	apiHeader    = "X-Api-Token"
)

var cookieCfg = config.CookieConfig{Name: "cas_session", Path: "/", MaxAge: 3600, Secure: true}

type fixture struct {
	router     http.Handler
	identities *identitystore.InMemoryIdentityStore
	services   *registrystore.InMemoryServiceStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	identities := identitystore.NewInMemory()
	services := registrystore.NewInMemory()

	jane, err := identitymodels.NewIdentity("jane", "correct horse", "staff")
	require.NoError(t, err)
	require.NoError(t, identities.Save(ctx, jane))

	otpUser, err := identitymodels.NewIdentity("otto", "correct horse")
	require.NoError(t, err)
	otpUser.OTPSecret = otpSecret
	require.NoError(t, identities.Save(ctx, otpUser))

	app := registrymodels.NewService("app", "https://app.example.com/*")
	app.Mode = registrymodels.ModePublic
	require.NoError(t, services.Create(ctx, app))

	admins := registrymodels.NewService("admin", "https://admin.example.com/*")
	admins.Mode = registrymodels.ModeAdmin
	require.NoError(t, services.Create(ctx, admins))

	matcher := registry.NewMatcher(services, registry.WithLogger(logger))
	issuer := session.NewIssuer(strings.Repeat("k", 32), "cas", time.Hour)
	tickets := ticket.New(ticketstore.NewInMemory(), identities, time.Minute, ticket.WithLogger(logger))
	svc := service.New(matcher, identities, tickets, issuer, otpvalidator.New(30*time.Second, 1), systemDomain,
		service.WithLogger(logger),
	)

	chain := securecontext.Chain{
		securecontext.SessionTokenResolver(cookieCfg.Name, issuer, identities, matcher, logger),
		securecontext.APITokenResolver(apiHeader, identities, matcher),
	}

	r := chi.NewRouter()
	r.Use(request.Middleware)
	r.Use(securecontext.Middleware(chain, logger))
	New(svc, cookieCfg, logger).Register(r)

	return &fixture{router: r, identities: identities, services: services}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(f.router, req)
}

func (f *fixture) login(t *testing.T, serviceURL string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(testutil.NewJSONRequest(t, http.MethodPost, "/cas/login?service="+url.QueryEscape(serviceURL), body))
}

func (f *fixture) sessionCookie(t *testing.T, username string) *http.Cookie {
	t.Helper()
	rec := f.login(t, appURL, map[string]any{"username": username, "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	c := testutil.Cookie(rec, cookieCfg.Name)
	require.NotNil(t, c, "no session cookie issued")
	return c
}

func (f *fixture) issueTicket(t *testing.T, cookie *http.Cookie, serviceURL string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/cas/login?service="+url.QueryEscape(serviceURL), nil)
	req.AddCookie(cookie)
	rec := f.do(req)
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	token := location.Query().Get("ticket")
	require.NotEmpty(t, token)
	return token
}

func (f *fixture) validate(serviceURL, token, format string) *httptest.ResponseRecorder {
	q := url.Values{"service": {serviceURL}, "ticket": {token}}
	if format != "" {
		q.Set("format", format)
	}
	return f.do(httptest.NewRequest(http.MethodGet, "/cas/p3/serviceValidate?"+q.Encode(), nil))
}

type jsonResponse struct {
	ServiceResponse struct {
		Success *struct {
			User       string `json:"user"`
			Attributes struct {
				Admin bool     `json:"admin"`
				Roles []string `json:"roles"`
			} `json:"attributes"`
		} `json:"authenticationSuccess"`
		Failure *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"authenticationFailure"`
	} `json:"serviceResponse"`
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) jsonResponse {
	t.Helper()
	return *testutil.UnmarshalResponse[jsonResponse](t, rec)
}

func TestInteractiveLogin(t *testing.T) {
	f := newFixture(t)

	testutil.Given(t, "a registered service and valid credentials", func(t *testing.T) {
		testutil.When(t, "logging in without cas", func(t *testing.T) {
			rec := f.login(t, appURL, map[string]any{"username": "jane", "password": "correct horse"})

			testutil.Then(t, "the browser goes straight to the service", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code)
				body := testutil.UnmarshalResponse[loginResponse](t, rec)
				assert.Equal(t, appURL, body.Location)
			})

			testutil.Then(t, "a hardened session cookie is set", func(t *testing.T) {
				cookies := rec.Result().Cookies()
				require.Len(t, cookies, 1)
				c := cookies[0]
				assert.Equal(t, cookieCfg.Name, c.Name)
				assert.NotEmpty(t, c.Value)
				assert.True(t, c.HttpOnly)
				assert.True(t, c.Secure)
				assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
				assert.Equal(t, 3600, c.MaxAge)
			})
		})

		testutil.When(t, "logging in with cas", func(t *testing.T) {
			rec := f.login(t, appURL, map[string]any{"username": "jane", "password": "correct horse", "cas": true})

			testutil.Then(t, "the location carries a service ticket", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code)
				body := testutil.UnmarshalResponse[loginResponse](t, rec)
				assert.True(t, strings.HasPrefix(body.Location, appURL+"?ticket=ST-"))
			})
		})
	})

	testutil.Given(t, "bad input", func(t *testing.T) {
		testutil.Then(t, "wrong password is forbidden", func(t *testing.T) {
			rec := f.login(t, appURL, map[string]any{"username": "jane", "password": "nope"})
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
		})

		testutil.Then(t, "unknown username is indistinguishable from a wrong password", func(t *testing.T) {
			rec := f.login(t, appURL, map[string]any{"username": "ghost", "password": "correct horse"})
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})

		testutil.Then(t, "unknown service is not found", func(t *testing.T) {
			rec := f.login(t, "https://elsewhere.example.org/", map[string]any{"username": "jane", "password": "correct horse"})
			testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "MISSING_SERVICE")
		})

		testutil.Then(t, "malformed body is a bad request", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cas/login?service="+url.QueryEscape(appURL), strings.NewReader("{"))
			rec := f.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	})
}

func TestSecondFactorLogin(t *testing.T) {
	f := newFixture(t)

	testutil.Given(t, "an identity with an otp secret", func(t *testing.T) {
		testutil.Then(t, "a wrong code is rejected with conflict", func(t *testing.T) {
			rec := f.login(t, appURL, map[string]any{"username": "otto", "password": "correct horse", "securityPassword": "000000"})
			if rec.Code == http.StatusOK {
				t.Skip("000000 happens to be the current code")
			}
			assert.Equal(t, http.StatusConflict, rec.Code)
		})

		testutil.Then(t, "a missing code is rejected with conflict", func(t *testing.T) {
			rec := f.login(t, appURL, map[string]any{"username": "otto", "password": "correct horse"})
			assert.Equal(t, http.StatusConflict, rec.Code)
		})

		testutil.Then(t, "the current code succeeds", func(t *testing.T) {
			code, err := totp.GenerateCodeCustom(otpSecret, time.Now(), totp.ValidateOpts{
				Period:    30,
				Digits:    otp.DigitsSix,
				Algorithm: otp.AlgorithmSHA1,
			})
			require.NoError(t, err)
			rec := f.login(t, appURL, map[string]any{"username": "otto", "password": "correct horse", "securityPassword": code})
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	})
}

func TestRequestLogin(t *testing.T) {
	f := newFixture(t)
	cookie := f.sessionCookie(t, "jane")

	t.Run("without session goes to the login page", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/cas/login?service="+url.QueryEscape(appURL), nil))
		testutil.AssertRedirect(t, rec, systemDomain+"/#/cas/login?service="+appURL)
	})

	t.Run("unknown service goes to the error page", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/cas/login?service="+url.QueryEscape("https://nope.example.org/"), nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, systemDomain+"/#/cas/error?service=https://nope.example.org/&code=MISSING_SERVICE", rec.Header().Get("Location"))
	})

	t.Run("denied session goes to the error page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cas/login?service="+url.QueryEscape("https://admin.example.com/"), nil)
		req.AddCookie(cookie)
		rec := f.do(req)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, systemDomain+"/#/cas/error?service=https://admin.example.com/&code=DENIED", rec.Header().Get("Location"))
	})

	t.Run("allowed session receives a ticket", func(t *testing.T) {
		token := f.issueTicket(t, cookie, appURL)
		assert.True(t, strings.HasPrefix(token, "ST-"))
	})
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	cookie := f.sessionCookie(t, "jane")

	testutil.Given(t, "a fresh ticket", func(t *testing.T) {
		token := f.issueTicket(t, cookie, appURL)

		testutil.When(t, "validated twice", func(t *testing.T) {
			first := f.validate(appURL, token, "JSON")
			second := f.validate(appURL, token, "JSON")

			testutil.Then(t, "only the first succeeds", func(t *testing.T) {
				require.Equal(t, http.StatusOK, first.Code)
				body := decodeJSON(t, first)
				require.NotNil(t, body.ServiceResponse.Success)
				assert.Equal(t, "jane", body.ServiceResponse.Success.User)
				assert.Equal(t, []string{"staff"}, body.ServiceResponse.Success.Attributes.Roles)

				require.Equal(t, http.StatusOK, second.Code)
				failure := decodeJSON(t, second).ServiceResponse.Failure
				require.NotNil(t, failure)
				assert.Equal(t, "INVALID_TICKET", failure.Code)
				assert.Equal(t, "Ticket "+token+" not recognized.", failure.Description)
			})
		})
	})

	testutil.Given(t, "a ticket presented for the wrong service", func(t *testing.T) {
		token := f.issueTicket(t, cookie, appURL)
		wrong := f.validate("https://app.example.com/other", token, "JSON")

		testutil.Then(t, "it fails without being consumed", func(t *testing.T) {
			require.NotNil(t, decodeJSON(t, wrong).ServiceResponse.Failure)
			right := f.validate(appURL, token, "JSON")
			assert.NotNil(t, decodeJSON(t, right).ServiceResponse.Success)
		})
	})

	testutil.Given(t, "missing parameters", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/cas/serviceValidate?format=JSON&service="+url.QueryEscape(appURL), nil))

		testutil.Then(t, "the response is INVALID_REQUEST with status 200", func(t *testing.T) {
			assert.Equal(t, http.StatusOK, rec.Code)
			failure := decodeJSON(t, rec).ServiceResponse.Failure
			require.NotNil(t, failure)
			assert.Equal(t, "INVALID_REQUEST", failure.Code)
		})
	})

	testutil.Given(t, "the default XML format", func(t *testing.T) {
		token := f.issueTicket(t, cookie, appURL)
		rec := f.validate(appURL, token, "")

		testutil.Then(t, "the CAS XML envelope names the user", func(t *testing.T) {
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
			var doc struct {
				XMLName xml.Name
				User    string `xml:"authenticationSuccess>user"`
			}
			require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &doc))
			assert.Equal(t, "serviceResponse", doc.XMLName.Local)
			assert.Equal(t, "jane", doc.User)
			assert.Contains(t, rec.Body.String(), `xmlns:cas="http://www.yale.edu/tp/cas"`)
		})
	})

	testutil.Given(t, "every validation route", func(t *testing.T) {
		for _, path := range []string{"/cas/validate", "/cas/serviceValidate", "/cas/p3/serviceValidate", "/cas/proxyValidate", "/cas/p3/proxyValidate"} {
			token := f.issueTicket(t, cookie, appURL)
			q := url.Values{"service": {appURL}, "ticket": {token}}
			req := httptest.NewRequest(http.MethodGet, path+"?"+q.Encode(), nil)
			req.Header.Set("Accept", "application/json")
			rec := f.do(req)
			assert.NotNil(t, decodeJSON(t, rec).ServiceResponse.Success, path)
		}
	})
}

func TestConcurrentValidation(t *testing.T) {
	f := newFixture(t)
	token := f.issueTicket(t, f.sessionCookie(t, "jane"), appURL)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := f.validate(appURL, token, "JSON")
			var body jsonResponse
			if json.Unmarshal(rec.Body.Bytes(), &body) == nil && body.ServiceResponse.Success != nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestForwardAuth(t *testing.T) {
	f := newFixture(t)
	cookie := f.sessionCookie(t, "jane")

	forward := func(host, uri string, c *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, ForwardAuthPath, nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", host)
		req.Header.Set("X-Forwarded-Uri", uri)
		if c != nil {
			req.AddCookie(c)
		}
		return f.do(req)
	}

	t.Run("no session redirects to the login page", func(t *testing.T) {
		rec := forward("app.example.com", "/dash", nil)
		testutil.AssertRedirect(t, rec, systemDomain+"/#/login?service=https://app.example.com/dash")
	})

	t.Run("allowed session passes", func(t *testing.T) {
		rec := forward("app.example.com", "/dash", cookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("denied session", func(t *testing.T) {
		rec := forward("admin.example.com", "/", cookie)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, systemDomain+"/#/cas/error?service=https://admin.example.com/&code=DENIED", rec.Header().Get("Location"))
	})

	t.Run("unregistered host", func(t *testing.T) {
		rec := forward("intranet.example.net", "/", cookie)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "code=MISSING_SERVICE")
	})

	t.Run("api token is accepted", func(t *testing.T) {
		ctx := context.Background()
		bot, err := f.identities.FindByUsername(ctx, "jane")
		require.NoError(t, err)
		bot.APIToken = "static-token"
		require.NoError(t, f.identities.Save(ctx, bot))

		req := httptest.NewRequest(http.MethodPost, ForwardAuthPath, nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "app.example.com")
		req.Header.Set("X-Forwarded-Uri", "/api/items")
		req.Header.Set("Authorization", "Bearer static-token")
		rec := f.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)

	t.Run("registered service", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/cas/logout?service="+url.QueryEscape(appURL), nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, appURL, rec.Header().Get("Location"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, cookieCfg.Name, cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
		assert.Negative(t, cookies[0].MaxAge)
	})

	t.Run("unknown service goes home", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/cas/logout?service="+url.QueryEscape("https://evil.example.org/"), nil))
		testutil.AssertRedirect(t, rec, systemDomain+"/")
	})
}
