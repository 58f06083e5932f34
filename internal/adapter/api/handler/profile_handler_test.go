package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapit/internal/adapter/api"
	"swapit/internal/infrastructure/memstore"
	"swapit/internal/usecase"
)

type staticDirectory struct {
	email string
}

func (d staticDirectory) UserEmail(ctx context.Context, uid string) (string, error) {
	return d.email, nil
}

func registerRequestContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = api.NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/v1/profile", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "U1")
	return c, rec
}

func TestRegisterFillsEmailFromDirectory(t *testing.T) {
	store := memstore.New()
	uc := usecase.NewProfileUseCase(store)
	h := NewProfileHandler(uc, staticDirectory{email: "mika@example.com"})

	c, rec := registerRequestContext(`{"nickname":"Mika"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	profile, err := uc.Get(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "Mika", profile.Nickname)
	assert.Equal(t, "mika@example.com", profile.Email)
}

func TestRegisterPrefersEmailFromRequest(t *testing.T) {
	store := memstore.New()
	uc := usecase.NewProfileUseCase(store)
	h := NewProfileHandler(uc, staticDirectory{email: "directory@example.com"})

	c, rec := registerRequestContext(`{"nickname":"Mika","email":"mine@example.com"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	profile, err := uc.Get(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "mine@example.com", profile.Email)
}

func TestRegisterWithoutDirectory(t *testing.T) {
	store := memstore.New()
	uc := usecase.NewProfileUseCase(store)
	h := NewProfileHandler(uc, nil)

	c, rec := registerRequestContext(`{"nickname":"Mika"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	profile, err := uc.Get(context.Background(), "U1")
	require.NoError(t, err)
	assert.Empty(t, profile.Email)
}
