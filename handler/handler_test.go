package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/subscriptions/handler"
)

type greetRequest struct {
	Name string `json:"name"`
}

var errTaken = errors.New("name taken")

func mapper(err error) (handler.HTTPError, bool) {
	if errors.Is(err, errTaken) {
		return handler.ErrConflict.WithMessage("that name is taken"), true
	}
	return handler.HTTPError{}, false
}

func greet(_ *http.Request, req greetRequest) handler.Response {
	switch req.Name {
	case "taken":
		return handler.JSONError(errTaken)
	case "boom":
		return handler.JSONError(errors.New("db exploded"))
	case "nil":
		return nil
	case "teapot":
		return handler.JSONError(handler.NewHTTPError(http.StatusTeapot, "teapot"))
	}
	return handler.JSON(map[string]string{"hello": req.Name}, handler.WithJSONStatus(http.StatusCreated))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var body handler.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestWrap(t *testing.T) {
	t.Parallel()

	h := handler.Wrap(greet,
		handler.WithBinder[greetRequest](handler.JSONBody(64)),
		handler.WithErrorHandler[greetRequest](handler.NewErrorHandler(nil, mapper)),
	)
	do := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return rec
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		rec := do(`{"name":"rex"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"hello":"rex"}`, rec.Body.String())
	})

	t.Run("mapped domain error", func(t *testing.T) {
		t.Parallel()
		rec := do(`{"name":"taken"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, handler.ErrorDetail{Code: "conflict", Message: "that name is taken"}, decodeError(t, rec))
	})

	t.Run("unknown error hides cause", func(t *testing.T) {
		t.Parallel()
		rec := do(`{"name":"boom"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		detail := decodeError(t, rec)
		assert.Equal(t, "internal_error", detail.Code)
		assert.NotContains(t, detail.Message, "exploded")
	})

	t.Run("http error passes through", func(t *testing.T) {
		t.Parallel()
		rec := do(`{"name":"teapot"}`)
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "teapot", decodeError(t, rec).Code)
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		rec := do(`{"name":"nil"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		rec := do(`{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", decodeError(t, rec).Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		t.Parallel()
		rec := do(`{"name":"` + strings.Repeat("a", 100) + `"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body binds zero value", func(t *testing.T) {
		t.Parallel()
		rec := do("")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"hello":""}`, rec.Body.String())
	})
}

func TestRawBody(t *testing.T) {
	t.Parallel()

	bind := handler.RawBody(8)

	var got []byte
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("payload")))
	require.NoError(t, bind(r, &got))
	assert.Equal(t, []byte("payload"), got)

	r = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("too long payload")))
	assert.ErrorIs(t, bind(r, &got), handler.ErrInvalidBody)

	var wrong string
	assert.Error(t, bind(r, &wrong))
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	handler.WriteError(rec, handler.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"unauthorized","message":"Unauthorized"}}`, rec.Body.String())
}
