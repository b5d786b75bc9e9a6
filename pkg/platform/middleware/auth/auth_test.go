package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"veil/pkg/requestcontext"
)

const testKey = "test-signing-key"

type AuthMiddlewareSuite struct {
	suite.Suite
	validator *HMACValidator
	logger    *slog.Logger
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.validator = NewHMACValidator(testKey, "")
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims ViewerClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() ViewerClaims {
	return ViewerClaims{
		Role: "partner",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "partner-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func (s *AuthMiddlewareSuite) serve(authHeader, method string) (*httptest.ResponseRecorder, *requestcontext.Viewer) {
	var seen *requestcontext.Viewer
	handler := RequireViewer(s.validator, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v, ok := requestcontext.ViewerFrom(r.Context()); ok {
			seen = &v
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/redact", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, seen
}

func (s *AuthMiddlewareSuite) TestValidTokenPopulatesViewer() {
	token := sign(s.T(), jwt.SigningMethodHS256, []byte(testKey), validClaims())

	w, viewer := s.serve("Bearer "+token, http.MethodPost)

	s.Equal(http.StatusOK, w.Code)
	s.Require().NotNil(viewer)
	s.Equal("partner-42", viewer.ID)
	s.Equal("partner", viewer.Role)
}

func (s *AuthMiddlewareSuite) TestRejections() {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noRole := validClaims()
	noRole.Role = ""

	cases := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic abc",
		"garbage token":   "Bearer not.a.jwt",
		"wrong key":       "Bearer " + sign(s.T(), jwt.SigningMethodHS256, []byte("other"), validClaims()),
		"expired token":   "Bearer " + sign(s.T(), jwt.SigningMethodHS256, []byte(testKey), expired),
		"missing role":    "Bearer " + sign(s.T(), jwt.SigningMethodHS256, []byte(testKey), noRole),
		"wrong algorithm": "Bearer " + sign(s.T(), jwt.SigningMethodHS384, []byte(testKey), validClaims()),
	}
	for name, header := range cases {
		s.Run(name, func() {
			w, viewer := s.serve(header, http.MethodPost)
			s.Equal(http.StatusUnauthorized, w.Code)
			s.Nil(viewer)
		})
	}
}

func (s *AuthMiddlewareSuite) TestPreflightSkipsAuth() {
	w, viewer := s.serve("", http.MethodOptions)
	s.Equal(http.StatusOK, w.Code)
	s.Nil(viewer)
}

func TestAudienceCheck(t *testing.T) {
	v := NewHMACValidator(testKey, "veil")
	claims := validClaims()
	claims.Audience = jwt.ClaimStrings{"someone-else"}

	_, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testKey), claims))
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims.Audience = jwt.ClaimStrings{"veil"}
	got, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testKey), claims))
	require.NoError(t, err)
	assert.Equal(t, "partner", got.Role)
}
