package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	e := New(TypeBadRequest, "progress out of range")
	assert.Equal(t, "bad_request: progress out of range", e.Error())

	e.WithDetails("progress=150")
	assert.Equal(t, `bad_request: progress out of range (map[detail:progress=150])`, e.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	e := Wrap(cause, TypeTransient, "catalog query failed")

	assert.Equal(t, cause, e.Unwrap())
	assert.True(t, errors.Is(e, cause))
}

func TestWithDetailsReturnsSamePointer(t *testing.T) {
	e := New(TypeConflict, "data root not mounted")
	detailed := e.WithDetails("path=/mnt/raw")

	assert.Same(t, e, detailed)
}

func TestStatusCodeMapping(t *testing.T) {
	cases := map[ErrorType]int{
		TypeNotFound:     http.StatusNotFound,
		TypeUnauthorized: http.StatusUnauthorized,
		TypeBadRequest:   http.StatusBadRequest,
		TypeConflict:     http.StatusConflict,
		TypeTransient:    http.StatusServiceUnavailable,
	}
	for typ, want := range cases {
		assert.Equal(t, want, typ.StatusCode(), "type %s", typ)
	}
	assert.Equal(t, 0, TypeFatal.StatusCode())
}

func TestPredefinedConstructors(t *testing.T) {
	assert.Equal(t, "not_found: image not found", NotFound("image").Error())
	assert.Equal(t, TypeUnauthorized, Unauthorized("missing api_key").Type)
}

func TestAsUnwrapsAppError(t *testing.T) {
	wrapped := error(Wrap(errors.New("boom"), TypeTransient, "retry later"))
	ae, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, TypeTransient, ae.Type)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
