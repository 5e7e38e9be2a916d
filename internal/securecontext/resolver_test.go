package securecontext

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	identitymodels "cas/internal/identity/models"
	identitystore "cas/internal/identity/store"
	"cas/internal/registry"
	registrymodels "cas/internal/registry/models"
	registrystore "cas/internal/registry/store"
	"cas/internal/session"
)

const (
	cookieName = "CASTGC"
	apiHeader  = "X-Api-Token"
	signingKey = "0123456789abcdef0123456789abcdef"
)

type brokenIdentities struct{ IdentityFinder }

func (brokenIdentities) FindByAPIToken(context.Context, string) (*identitymodels.Identity, error) {
	return nil, errors.New("db down")
}

type ResolverSuite struct {
	suite.Suite
	identities *identitystore.InMemoryIdentityStore
	matcher    *registry.Matcher
	issuer     *session.Issuer
	chain      Chain
	logger     *slog.Logger
	jane       *identitymodels.Identity
	bot        *identitymodels.Identity
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	ctx := context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.identities = identitystore.NewInMemory()
	s.jane = &identitymodels.Identity{Username: "jane"}
	s.bot = &identitymodels.Identity{Username: "bot", APIToken: "static-token"}
	s.Require().NoError(s.identities.Save(ctx, s.jane))
	s.Require().NoError(s.identities.Save(ctx, s.bot))

	services := registrystore.NewInMemory()
	s.Require().NoError(services.Create(ctx, registrymodels.NewService("app", "https://app.example.com/*")))
	s.matcher = registry.NewMatcher(services)
	s.issuer = session.NewIssuer(signingKey, "cas", time.Hour)

	s.chain = Chain{
		SessionTokenResolver(cookieName, s.issuer, s.identities, s.matcher, s.logger),
		APITokenResolver(apiHeader, s.identities, s.matcher),
	}
}

func (s *ResolverSuite) sessionCookie(identity *identitymodels.Identity) *http.Cookie {
	token, err := s.issuer.Issue(identity, nil)
	s.Require().NoError(err)
	return &http.Cookie{Name: cookieName, Value: token}
}

func (s *ResolverSuite) TestSessionCookie() {
	req := httptest.NewRequest(http.MethodGet, "/cas/login?service=https://app.example.com/home", nil)
	req.AddCookie(s.sessionCookie(s.jane))

	sc, err := s.chain.Resolve(req)
	s.Require().NoError(err)
	s.Require().NotNil(sc)
	s.Equal(SourceSessionToken, sc.Source)
	s.Equal("jane", sc.Identity.Username)
	s.Require().NotNil(sc.Service)
	s.Equal("app", sc.Service.Name)
}

func (s *ResolverSuite) TestSessionWinsOverAPIToken() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(s.sessionCookie(s.jane))
	req.Header.Set("Authorization", "Bearer static-token")

	sc, err := s.chain.Resolve(req)
	s.Require().NoError(err)
	s.Equal(SourceSessionToken, sc.Source)
	s.Equal("jane", sc.Identity.Username)
}

func (s *ResolverSuite) TestInvalidCookieFallsThrough() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "tampered.token.value"})
	req.Header.Set(apiHeader, "static-token")

	sc, err := s.chain.Resolve(req)
	s.Require().NoError(err)
	s.Require().NotNil(sc)
	s.Equal(SourceAPIToken, sc.Source)
	s.Equal("bot", sc.Identity.Username)
}

func (s *ResolverSuite) TestAPITokenForms() {
	for name, set := range map[string]func(*http.Request){
		"bearer":           func(r *http.Request) { r.Header.Set("Authorization", "Bearer static-token") },
		"lowercase bearer": func(r *http.Request) { r.Header.Set("Authorization", "bearer  static-token ") },
		"dedicated header": func(r *http.Request) { r.Header.Set(apiHeader, " static-token") },
	} {
		s.Run(name, func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			set(req)
			sc, err := s.chain.Resolve(req)
			s.Require().NoError(err)
			s.Require().NotNil(sc)
			s.Equal(SourceAPIToken, sc.Source)
			s.Nil(sc.Service)
		})
	}
}

func (s *ResolverSuite) TestAnonymous() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer unknown-token")
	sc, err := s.chain.Resolve(req)
	s.Require().NoError(err)
	s.Nil(sc)
}

func (s *ResolverSuite) TestSessionForDeletedIdentity() {
	ghost := &identitymodels.Identity{Username: "ghost"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(s.sessionCookie(ghost))
	sc, err := s.chain.Resolve(req)
	s.Require().NoError(err)
	s.Nil(sc)
}

func (s *ResolverSuite) TestLookupFailureAborts() {
	chain := Chain{APITokenResolver(apiHeader, brokenIdentities{s.identities}, s.matcher)}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(apiHeader, "static-token")
	_, err := chain.Resolve(req)
	s.Error(err)
}

func (s *ResolverSuite) TestMiddleware() {
	var seen *SecureContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	})

	s.Run("attaches resolved context", func() {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(apiHeader, "static-token")
		Middleware(s.chain, s.logger)(next).ServeHTTP(httptest.NewRecorder(), req)
		s.Require().NotNil(seen)
		s.Equal(SourceAPIToken, seen.Source)
	})

	s.Run("keeps an existing context", func() {
		seen = nil
		existing := &SecureContext{Identity: s.jane, Source: SourceForwarded}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(apiHeader, "static-token")
		req = req.WithContext(WithSecureContext(req.Context(), existing))
		Middleware(s.chain, s.logger)(next).ServeHTTP(httptest.NewRecorder(), req)
		s.Same(existing, seen)
	})

	s.Run("anonymous request passes through", func() {
		seen = &SecureContext{}
		Middleware(s.chain, s.logger)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		s.Nil(seen)
	})

	s.Run("resolver failure is a 500", func() {
		chain := Chain{APITokenResolver(apiHeader, brokenIdentities{s.identities}, s.matcher)}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(apiHeader, "static-token")
		rec := httptest.NewRecorder()
		Middleware(chain, s.logger)(next).ServeHTTP(rec, req)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.JSONEq(`{"error":"internal_error"}`, rec.Body.String())
	})
}
