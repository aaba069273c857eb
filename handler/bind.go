package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// JSONBody decodes the request body into v. An empty body leaves v at its
// zero value; a body larger than maxBytes is rejected.
func JSONBody(maxBytes int64) Bind {
	return func(r *http.Request, v any) error {
		if r.Body == nil || r.Body == http.NoBody {
			return nil
		}
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBytes+1))
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Join(ErrInvalidBody, err)
		}
		if dec.InputOffset() > maxBytes {
			return errors.Join(ErrInvalidBody, fmt.Errorf("body exceeds %d bytes", maxBytes))
		}
		return nil
	}
}

// RawBody stores the unparsed body in v, which must be a *[]byte.
// Webhook signatures are computed over these exact bytes.
func RawBody(maxBytes int64) Bind {
	return func(r *http.Request, v any) error {
		dst, ok := v.(*[]byte)
		if !ok {
			return fmt.Errorf("RawBody: want *[]byte, got %T", v)
		}
		if r.Body == nil {
			return nil
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		if err != nil {
			return errors.Join(ErrInvalidBody, err)
		}
		if int64(len(data)) > maxBytes {
			return errors.Join(ErrInvalidBody, fmt.Errorf("body exceeds %d bytes", maxBytes))
		}
		*dst = data
		return nil
	}
}
