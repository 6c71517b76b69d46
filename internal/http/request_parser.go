package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"parcelas/internal/core"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

// decodeJSON reads exactly one JSON value from the body into dst. Unknown
// fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadBody)
		}
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON value", errBadBody)
	}
	return nil
}

// createExpenseRequest is the body of POST /api/expenses. totalValue may be
// a JSON number or a string using either a dot or a comma as separator.
type createExpenseRequest struct {
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	PurchaseDate      string          `json:"purchaseDate"`
	TotalValue        json.RawMessage `json:"totalValue"`
	InstallmentsCount int             `json:"installmentsCount"`
	DueDay            *int            `json:"dueDay"`
	Notes             string          `json:"notes"`
}

// toPurchaseInput validates the raw fields. An empty purchase date means today.
func (req createExpenseRequest) toPurchaseInput(today core.Date) (core.PurchaseInput, error) {
	in := core.PurchaseInput{
		Name:              sanitizeInput(req.Name),
		Category:          sanitizeInput(req.Category),
		Notes:             sanitizeInput(req.Notes),
		InstallmentsCount: req.InstallmentsCount,
		DueDay:            req.DueDay,
		PurchaseDate:      today,
	}

	if s := strings.TrimSpace(req.PurchaseDate); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return core.PurchaseInput{}, err
		}
		in.PurchaseDate = d
	}

	amount, err := parseAmountField(req.TotalValue)
	if err != nil {
		return core.PurchaseInput{}, err
	}
	in.TotalValue = amount

	return in, nil
}

func parseAmountField(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Decimal{}, fmt.Errorf("%w: missing total value", core.ErrInvalidAmount)
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
		}
	} else {
		s = string(raw)
	}
	return core.ParseAmount(s)
}

// setPaidRequest is the body of the paid toggles; paid is required.
type setPaidRequest struct {
	Paid *bool `json:"paid"`
}

func (req setPaidRequest) value() (bool, error) {
	if req.Paid == nil {
		return false, fmt.Errorf("%w: missing paid flag", errBadBody)
	}
	return *req.Paid, nil
}

// monthFromPath validates the {month} path segment as a month key.
func monthFromPath(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.PathValue("month"))
	year, month, err := core.ParseMonthKey(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d-%02d", year, month), nil
}

// parseDateRange reads from/to (YYYY-MM-DD) from the query. Missing bounds
// default to the first and last day of today's month.
func parseDateRange(query url.Values, today core.Date) (from, to core.Date, err error) {
	from = core.NewDate(today.Year(), int(today.Month()), 1)
	to = core.NewDate(today.Year(), int(today.Month()), core.DaysInMonth(today.Year(), today.Month()))

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		if from, err = core.ParseDate(v); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		if to, err = core.ParseDate(v); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	if to.Before(from.Time) {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: range ends before it starts", core.ErrInvalidDate)
	}
	return from, to, nil
}

// parseMonthsParam reads ?n= for the month list, clamped to 1..120.
func parseMonthsParam(query url.Values, def int) int {
	v := strings.TrimSpace(query.Get("n"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return min(n, 120)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
