package errors

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorConstructors(t *testing.T) {
	tests := []struct {
		name           string
		err            *AppError
		expectedCat    ErrorCategory
		expectedStatus int
		expectedPrefix string
	}{
		{
			name:           "validation error",
			err:            NewValidationError("input must be a JSON object", "got array"),
			expectedCat:    CategoryValidation,
			expectedStatus: http.StatusBadRequest,
			expectedPrefix: "[VALIDATION_ERROR] input must be a JSON object",
		},
		{
			name:           "model error",
			err:            NewModelError("temporal_model", fmt.Errorf("bad artifact")),
			expectedCat:    CategoryModel,
			expectedStatus: http.StatusServiceUnavailable,
			expectedPrefix: "[MODEL_ERROR] model temporal_model unavailable",
		},
		{
			name:           "configuration error",
			err:            NewConfigurationError("weights do not cover dna_analyzer", nil),
			expectedCat:    CategoryConfiguration,
			expectedStatus: http.StatusInternalServerError,
			expectedPrefix: "[CONFIGURATION_ERROR] weights do not cover dna_analyzer",
		},
		{
			name:           "internal error",
			err:            NewInternalError("weight invariant violated", nil),
			expectedCat:    CategoryInternal,
			expectedStatus: http.StatusInternalServerError,
			expectedPrefix: "[INTERNAL_ERROR] weight invariant violated",
		},
		{
			name:           "not found error",
			err:            NewNotFoundError("unknown model oracle"),
			expectedCat:    CategoryNotFound,
			expectedStatus: http.StatusNotFound,
			expectedPrefix: "[NOT_FOUND] unknown model oracle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.expectedCat, tt.err.Category)
			assert.Equal(t, tt.expectedStatus, tt.err.HTTPStatus)
			assert.Contains(t, tt.err.Error(), tt.expectedPrefix)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestToAppError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToAppError(nil))
	})

	t.Run("app error passes through wrapping", func(t *testing.T) {
		orig := NewValidationError("bad input")
		wrapped := WrapError(orig, "handling %s", "request")

		got := ToAppError(wrapped)
		assert.Same(t, orig, got)
		assert.True(t, IsCategory(wrapped, CategoryValidation))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := ToAppError(fmt.Errorf("boom"))
		assert.Equal(t, CategoryInternal, got.Category)
		assert.ErrorContains(t, got, "boom")
	})
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	base := fmt.Errorf("root cause")
	err := WrapError(base, "loading %s", "dna_analyzer")
	assert.EqualError(t, err, "loading dna_analyzer: root cause")
	assert.ErrorIs(t, err, base)
}

func TestSafeExecute(t *testing.T) {
	err := SafeExecute(func() error { panic("index out of range") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index out of range")

	assert.NoError(t, SafeExecute(func() error { return nil }))
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(NewValidationError("missing body"))
	})
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"validation"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"internal"`)
}
