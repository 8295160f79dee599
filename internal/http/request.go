package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"budget/internal/core"
	"budget/internal/engine"
)

// maxBodyBytes caps JSON bodies, backups included.
const maxBodyBytes = 4 << 20

// errBadRequest marks malformed input that never reached the domain.
var errBadRequest = errors.New("bad request")

// amountRequest is the body of salary, deposit and correction calls.
type amountRequest struct {
	Amount float64   `json:"amount"`
	Date   core.Date `json:"date"`
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return d, nil
}

// queryRange reads from/to. Both or neither must be given; neither means
// all time.
func queryRange(r *http.Request) (*engine.Range, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return nil, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return nil, err
	}
	switch {
	case from.IsZero() && to.IsZero():
		return nil, nil
	case from.IsZero() || to.IsZero():
		return nil, fmt.Errorf("%w: from and to must be given together", errBadRequest)
	}
	rng := engine.NewRange(from, to)
	return &rng, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, key)
	}
	return b, nil
}

// queryPositiveInt returns def when key is absent.
func queryPositiveInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, key)
	}
	return n, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

func sanitizePtr(s *string) {
	if s != nil {
		*s = sanitizeInput(*s)
	}
}
