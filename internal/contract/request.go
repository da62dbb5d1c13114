package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Request is a caller-supplied contract envelope. Fields holds every key of
// the JSON object (contract_type included) as a string.
type Request struct {
	ContractType string
	Fields       map[string]string
}

// ParseRequest decodes a JSON object into a Request. Values must be scalars;
// null becomes the empty string.
func ParseRequest(r io.Reader) (*Request, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, NewInvalidRequest("request body must be a JSON object", err)
	}
	if raw == nil {
		return nil, NewInvalidRequest("request body must be a JSON object", nil)
	}
	if dec.More() {
		return nil, NewInvalidRequest("request body must contain a single JSON object", nil)
	}

	return NewRequest(raw)
}

// ParseRequestBytes is ParseRequest over an in-memory payload
func ParseRequestBytes(body []byte) (*Request, error) {
	return ParseRequest(bytes.NewReader(body))
}

// NewRequest builds a Request from an already decoded object
func NewRequest(raw map[string]any) (*Request, error) {
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		s, err := scalarString(value)
		if err != nil {
			return nil, NewInvalidRequest(fmt.Sprintf("field %q: %v", key, err), nil)
		}
		fields[key] = s
	}

	ct, ok := raw[KeyContractType]
	if !ok {
		return nil, NewInvalidRequest("missing required field contract_type", nil)
	}
	ctStr, isString := ct.(string)
	if !isString || strings.TrimSpace(ctStr) == "" {
		return nil, NewInvalidRequest("contract_type must be a non-empty string", nil)
	}

	return &Request{ContractType: ctStr, Fields: fields}, nil
}

// StudentName returns the name used for the download filename
func (r *Request) StudentName() string {
	return r.Fields[KeyStudentName]
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
