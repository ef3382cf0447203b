package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"identity/internal/database"
	"identity/internal/domain"
	"identity/internal/middleware"
	"identity/internal/modules/auth"
	"identity/internal/modules/users"
	jwtsvc "identity/internal/pkg/jwt"
	"identity/internal/repository"
)

const (
	testSecret   = "e2e-secret-key-32-characters-long!!"
	testIssuer   = "identity"
	testAudience = "identity-clients"
	testPepper   = "e2e-pepper"
)

type Suite struct {
	router   *gin.Engine
	db       *gorm.DB
	jwt      *jwtsvc.Service
	roleRepo *repository.RoleRepository
	userRepo *repository.UserRepository
}

type SessionPayload struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	Token           string    `json:"token"`
	RefreshToken    string    `json:"refreshToken"`
	TokenExpiration time.Time `json:"tokenExpiration"`
	User            struct {
		ID        int64    `json:"id"`
		Email     string   `json:"email"`
		FirstName string   `json:"firstName"`
		IsActive  bool     `json:"isActive"`
		Roles     []string `json:"roles"`
	} `json:"user"`
}

func setupSuite(t *testing.T) *Suite {
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(":memory:")
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Role{}))

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)

	j := jwtsvc.New(testSecret, testIssuer, testAudience, 15*time.Minute)

	authService := auth.NewService(userRepo, roleRepo, j, auth.LogMailer{}, testPepper, 7*24*time.Hour, time.Hour)
	authHandler := auth.NewHandler(authService)

	usersService := users.NewService(userRepo, roleRepo)
	usersHandler := users.NewHandler(usersService)

	r := gin.New()
	r.Use(middleware.ErrorLogger())

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			authHandler.RegisterProtectedRoutes(protected)
			usersHandler.RegisterRoutes(protected, middleware.AdminOnly())
		}
	}

	return &Suite{router: r, db: db, jwt: j, roleRepo: roleRepo, userRepo: userRepo}
}

func (s *Suite) request(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *Suite) register(t *testing.T, email, password string) SessionPayload {
	w := s.request(t, "POST", "/api/v1/register", gin.H{
		"email":     email,
		"password":  password,
		"firstName": "Test",
		"lastName":  "User",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload SessionPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestSessionJourney(t *testing.T) {
	s := setupSuite(t)

	// register
	reg := s.register(t, "a@x.com", "Passw0rd!")
	assert.True(t, reg.Success)
	assert.NotEmpty(t, reg.Token)
	assert.NotEmpty(t, reg.RefreshToken)
	assert.Equal(t, []string{domain.RoleUser}, reg.User.Roles)
	assert.True(t, reg.User.IsActive)

	// access token claims point at the persisted account
	claims, err := s.jwt.Validate(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	// profile with the fresh token
	w := s.request(t, "GET", "/api/v1/users/me", nil, reg.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@x.com")

	// login issues a different pair
	w = s.request(t, "POST", "/api/v1/login", gin.H{"email": "a@x.com", "password": "Passw0rd!"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login SessionPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEqual(t, reg.Token, login.Token)
	assert.NotEqual(t, reg.RefreshToken, login.RefreshToken)

	// registration's refresh token was superseded by login
	w = s.request(t, "POST", "/api/v1/refresh-token", gin.H{
		"accessToken":  reg.Token,
		"refreshToken": reg.RefreshToken,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// refresh with a stale (already expired) access token and the current
	// refresh secret
	staleIssuer := jwtsvc.New(testSecret, testIssuer, testAudience, -time.Minute)
	staleToken, _, err := staleIssuer.Generate(login.User.ID, login.User.Email, login.User.Roles)
	require.NoError(t, err)

	w = s.request(t, "POST", "/api/v1/refresh-token", gin.H{
		"accessToken":  staleToken,
		"refreshToken": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var refreshed SessionPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// rotation-on-use: the previous refresh token no longer works
	w = s.request(t, "POST", "/api/v1/refresh-token", gin.H{
		"accessToken":  staleToken,
		"refreshToken": login.RefreshToken,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// logout clears the stored refresh state
	w = s.request(t, "POST", "/api/v1/logout", nil, refreshed.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.request(t, "POST", "/api/v1/refresh-token", gin.H{
		"accessToken":  staleToken,
		"refreshToken": refreshed.RefreshToken,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := setupSuite(t)

	// weak password is rejected with the reasons list
	w := s.request(t, "POST", "/api/v1/register", gin.H{
		"email":     "weak@x.com",
		"password":  "short",
		"firstName": "A",
		"lastName":  "B",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "at least 8 characters")

	// duplicate email
	s.register(t, "taken@x.com", "Passw0rd!")
	w = s.request(t, "POST", "/api/v1/register", gin.H{
		"email":     "taken@x.com",
		"password":  "Passw0rd!",
		"firstName": "A",
		"lastName":  "B",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "EMAIL_EXISTS")
}

func TestLoginEnumerationResistance(t *testing.T) {
	s := setupSuite(t)
	known := s.register(t, "known@x.com", "Passw0rd!")

	// deactivate the account directly
	_, err := s.userRepo.SetActive(context.Background(), known.User.ID, false)
	require.NoError(t, err)

	wrongPassword := s.request(t, "POST", "/api/v1/login", gin.H{"email": "known@x.com", "password": "Wrong0rd!"}, "")
	unknownEmail := s.request(t, "POST", "/api/v1/login", gin.H{"email": "ghost@x.com", "password": "Passw0rd!"}, "")
	inactive := s.request(t, "POST", "/api/v1/login", gin.H{"email": "known@x.com", "password": "Passw0rd!"}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Equal(t, wrongPassword.Body.String(), inactive.Body.String())
}

func TestForgotPasswordNoSideChannel(t *testing.T) {
	s := setupSuite(t)
	s.register(t, "real@x.com", "Passw0rd!")

	existing := s.request(t, "POST", "/api/v1/forgot-password", gin.H{"email": "real@x.com"}, "")
	missing := s.request(t, "POST", "/api/v1/forgot-password", gin.H{"email": "nobody@x.com"}, "")

	assert.Equal(t, http.StatusOK, existing.Code)
	assert.Equal(t, http.StatusOK, missing.Code)
	assert.Equal(t, existing.Body.String(), missing.Body.String())
}

func TestChangePasswordInvalidatesRefresh(t *testing.T) {
	s := setupSuite(t)
	session := s.register(t, "rotate@x.com", "Passw0rd!")

	w := s.request(t, "POST", "/api/v1/change-password", gin.H{
		"currentPassword": "Passw0rd!",
		"newPassword":     "N3wPassw0rd!",
	}, session.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// old refresh token died with the old password
	w = s.request(t, "POST", "/api/v1/refresh-token", gin.H{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// old password no longer accepted, new one is
	w = s.request(t, "POST", "/api/v1/login", gin.H{"email": "rotate@x.com", "password": "Passw0rd!"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.request(t, "POST", "/api/v1/login", gin.H{"email": "rotate@x.com", "password": "N3wPassw0rd!"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminSurface(t *testing.T) {
	s := setupSuite(t)
	ctx := context.Background()

	admin := s.register(t, "admin@x.com", "Adm1nPass!")
	user := s.register(t, "user@x.com", "Passw0rd!")

	require.NoError(t, s.roleRepo.Grant(ctx, admin.User.ID, domain.RoleAdmin))

	// roles live in the token: re-login to pick up the grant
	w := s.request(t, "POST", "/api/v1/login", gin.H{"email": "admin@x.com", "password": "Adm1nPass!"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var adminSession SessionPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &adminSession))
	assert.Contains(t, adminSession.User.Roles, domain.RoleAdmin)

	// plain users cannot touch the managed surface
	w = s.request(t, "GET", "/api/v1/users", nil, user.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.request(t, "GET", "/api/v1/users", nil, adminSession.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user@x.com")

	// role grant and revoke via the HTTP surface
	w = s.request(t, "PUT", "/api/v1/users/"+itoa(user.User.ID)+"/roles/Moderator", nil, adminSession.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Moderator")

	w = s.request(t, "DELETE", "/api/v1/users/"+itoa(user.User.ID)+"/roles/Moderator", nil, adminSession.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	// deactivation locks the account out of login
	w = s.request(t, "POST", "/api/v1/users/"+itoa(user.User.ID)+"/deactivate", nil, adminSession.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.request(t, "POST", "/api/v1/login", gin.H{"email": "user@x.com", "password": "Passw0rd!"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.request(t, "POST", "/api/v1/users/"+itoa(user.User.ID)+"/activate", nil, adminSession.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.request(t, "POST", "/api/v1/login", gin.H{"email": "user@x.com", "password": "Passw0rd!"}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// hard delete
	w = s.request(t, "DELETE", "/api/v1/users/"+itoa(user.User.ID), nil, adminSession.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.request(t, "GET", "/api/v1/users/"+itoa(user.User.ID), nil, adminSession.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
