package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return core.Validationf("read request body: %v", err)
	}
	if len(body) == 0 {
		return core.Validationf("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return core.Validationf("invalid JSON body")
	}
	return nil
}

// transactionWrite is the dual-mode body of POST /transactions. A bare
// id restores a soft-deleted row; anything else is a create. The two
// modes cannot be mixed.
type transactionWrite struct {
	ID          *int64          `json:"id"`
	Type        *string         `json:"type"`
	Amount      json.RawMessage `json:"amount"`
	Description *string         `json:"description"`
	OccurredOn  *string         `json:"occurred_on"`
	CategoryID  *int64          `json:"category_id"`
}

func (in *transactionWrite) restoreMode() bool {
	return in.ID != nil
}

func (in *transactionWrite) validateRestore() error {
	if in.Type != nil || len(in.Amount) > 0 || in.Description != nil || in.OccurredOn != nil || in.CategoryID != nil {
		return core.Validationf("a restore request must contain only the id field")
	}
	return nil
}

func (in *transactionWrite) toCreate() (services.CreateTransaction, error) {
	if in.Type == nil || len(in.Amount) == 0 || in.OccurredOn == nil {
		return services.CreateTransaction{}, core.Validationf("type, amount and occurred_on are required")
	}

	typ, err := core.ParseTransactionType(*in.Type)
	if err != nil {
		return services.CreateTransaction{}, err
	}
	cents, err := parseAmount(in.Amount)
	if err != nil {
		return services.CreateTransaction{}, err
	}
	occurredOn, err := core.ParseDate(*in.OccurredOn)
	if err != nil {
		return services.CreateTransaction{}, core.Validationf("occurred_on must be a YYYY-MM-DD date")
	}

	out := services.CreateTransaction{
		Type:        typ,
		AmountCents: cents,
		OccurredOn:  occurredOn,
		CategoryID:  in.CategoryID,
	}
	if in.Description != nil {
		out.Description = strings.TrimSpace(*in.Description)
	}
	return out, nil
}

// transactionPatchBody is the body of PUT /transactions/{id}.
type transactionPatchBody struct {
	Type        *string         `json:"type"`
	Amount      json.RawMessage `json:"amount"`
	Description *string         `json:"description"`
	OccurredOn  *string         `json:"occurred_on"`
	CategoryID  *int64          `json:"category_id"`
}

func (in *transactionPatchBody) toPatch() (services.TransactionPatch, error) {
	var patch services.TransactionPatch

	if in.Type != nil {
		typ, err := core.ParseTransactionType(*in.Type)
		if err != nil {
			return patch, err
		}
		patch.Type = &typ
	}
	if len(in.Amount) > 0 {
		cents, err := parseAmount(in.Amount)
		if err != nil {
			return patch, err
		}
		patch.AmountCents = &cents
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		patch.Description = &desc
	}
	if in.OccurredOn != nil {
		occurredOn, err := core.ParseDate(*in.OccurredOn)
		if err != nil {
			return patch, core.Validationf("occurred_on must be a YYYY-MM-DD date")
		}
		patch.OccurredOn = &occurredOn
	}
	patch.CategoryID = in.CategoryID
	return patch, nil
}

// parseAmount accepts an amount as either a JSON string or number and
// converts it to cents.
func parseAmount(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return 0, core.Validationf("amount must be a positive decimal with at most two fraction digits")
	}
	return cents, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Validationf("invalid id in path")
	}
	return id, nil
}

func queryDate(r *http.Request, name string) (*core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, core.Validationf("%s must be a YYYY-MM-DD date", name)
	}
	return &d, nil
}

func queryType(r *http.Request) (*core.TransactionType, error) {
	v := strings.TrimSpace(r.URL.Query().Get("type"))
	if v == "" {
		return nil, nil
	}
	typ, err := core.ParseTransactionType(v)
	if err != nil {
		return nil, err
	}
	return &typ, nil
}

func queryInt(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// queryIntStrict parses an integer parameter, rejecting garbage instead
// of silently falling back to the default. Range checks stay with the
// caller.
func queryIntStrict(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Validationf("%s must be an integer", name)
	}
	return n, nil
}

func queryInt64(r *http.Request, name string) (*int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return nil, core.Validationf("%s must be a positive integer", name)
	}
	return &n, nil
}

func queryBool(r *http.Request, name string) bool {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	return v == "true" || v == "1"
}
