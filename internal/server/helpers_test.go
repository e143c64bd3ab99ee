package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"echoes/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock. Pings are monitored
// so readiness checks can be scripted.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return gormDB, mock
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"postId", "post ID"},
		{"followRequestId", "follow request ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 20)
		return c.JSON(fiber.Map{"skip": p.Skip, "take": p.Take})
	})

	tests := []struct {
		query      string
		skip, take float64
	}{
		{"", 0, 20},
		{"?skip=10&take=5", 10, 5},
		{"?skip=abc&take=xyz", 0, 20},
		{"?take=500", 0, 500},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			var body map[string]float64
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.skip, body["skip"])
			assert.Equal(t, tt.take, body["take"])
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		param, value string
		status       int
		message      string
	}{
		{"id", "42", http.StatusOK, ""},
		{"id", "abc", http.StatusBadRequest, "Invalid ID"},
		{"id", "0", http.StatusBadRequest, "Invalid ID"},
		{"id", "-3", http.StatusBadRequest, "Invalid ID"},
		{"userId", "abc", http.StatusBadRequest, "Invalid user ID"},
	}
	for _, tt := range tests {
		t.Run(tt.param+"="+tt.value, func(t *testing.T) {
			app := fiber.New()
			app.Get("/items/:"+tt.param, func(c *fiber.Ctx) error {
				id, err := parseID(c, tt.param)
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+tt.value, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.message != "" {
				var body models.ErrorResponse
				decodeBody(t, resp, &body)
				assert.Equal(t, tt.message, body.Error)
				assert.Equal(t, models.CodeValidation, body.Code)
			}
		})
	}
}

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", models.NewValidationError("bad"), http.StatusBadRequest, "bad"},
		{"unauthorized", models.NewUnauthorizedError("who"), http.StatusUnauthorized, "who"},
		{"forbidden", models.NewForbiddenError("nope"), http.StatusForbidden, "nope"},
		{"not found", models.NewNotFoundError("Post", 3), http.StatusNotFound, "Post with ID 3 not found"},
		{"conflict", models.NewConflictError("dup"), http.StatusConflict, "dup"},
		{"internal", models.NewInternalError(errors.New("pq: secret detail")), http.StatusInternalServerError, "Internal server error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return respondError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body models.ErrorResponse
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.message, body.Error)
			assert.Empty(t, body.Details)
		})
	}
}

func TestBind(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name" validate:"required,min=2"`
	}

	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		var p payload
		if err := bind(c, &p); err != nil {
			return nil
		}
		return c.JSON(p)
	})

	post := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := post(`{"email":"a@example.com","name":"Ada"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = post(`{"email":"a@example.com","name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "name must be at least 2 characters", body.Error)

	resp = post(`{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Equal(t, "Invalid request body", body.Error)
}
