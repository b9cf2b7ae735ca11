// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bureau-foundation/secret-portal/lib/envfile"
)

// MaxSubmissionSize bounds the request body of a submission.
const MaxSubmissionSize = 64 << 10

// SubmissionError reports a request body the portal refuses to apply.
// The message is shown to the submitting client and never contains a
// secret value.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string { return e.Message }

func (e *SubmissionError) Unwrap() error { return e.Err }

func malformed(message string, err error) *SubmissionError {
	return &SubmissionError{Message: message, Err: err}
}

const submissionSchemaURL = "secret-portal:submission.json"

// submissionSchema accepts either an entries array or a flat object of
// string values that does not itself contain an "entries" member.
const submissionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "oneOf": [
    {
      "type": "object",
      "required": ["entries"],
      "additionalProperties": false,
      "properties": {
        "entries": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["key", "value"],
            "additionalProperties": false,
            "properties": {
              "key": {"type": "string"},
              "value": {"type": "string"}
            }
          }
        }
      }
    },
    {
      "type": "object",
      "minProperties": 1,
      "not": {"required": ["entries"]},
      "additionalProperties": {"type": "string"}
    }
  ]
}`

var compiledSubmissionSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(submissionSchemaURL, strings.NewReader(submissionSchema)); err != nil {
		panic(fmt.Sprintf("portal: adding submission schema: %v", err))
	}
	schema, err := compiler.Compile(submissionSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("portal: compiling submission schema: %v", err))
	}
	return schema
}

const shapeMessage = `submission must be {"entries": [{"key": ..., "value": ...}]} or an object of KEY: "value" pairs`

// decodeSubmission parses body into entries in submission order and
// validates every key and value. Schema and syntax failures are
// reported with fixed messages: the underlying errors can quote the
// document, and the document holds secrets.
func decodeSubmission(body []byte) ([]envfile.Entry, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, malformed("submission body is empty", nil)
	}

	var document any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return nil, malformed("submission is not valid JSON", nil)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, malformed("submission has trailing data after the JSON document", nil)
	}
	if err := compiledSubmissionSchema.Validate(document); err != nil {
		return nil, malformed(shapeMessage, nil)
	}

	var entries []envfile.Entry
	var err error
	if _, wrapped := document.(map[string]any)["entries"]; wrapped {
		entries, err = decodeEntryList(body)
	} else {
		entries, err = decodeOrderedObject(body)
	}
	if err != nil {
		return nil, malformed(shapeMessage, nil)
	}

	if err := envfile.Validate(entries); err != nil {
		return nil, malformed(err.Error(), err)
	}
	return entries, nil
}

type wireEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func decodeEntryList(body []byte) ([]envfile.Entry, error) {
	var wire struct {
		Entries []wireEntry `json:"entries"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	entries := make([]envfile.Entry, len(wire.Entries))
	for i, entry := range wire.Entries {
		entries[i] = envfile.Entry{Key: entry.Key, Value: entry.Value}
	}
	return entries, nil
}

// decodeOrderedObject walks the top-level object token by token so the
// entries keep the member order of the document.
func decodeOrderedObject(body []byte) ([]envfile.Entry, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := expectDelim(decoder, '{'); err != nil {
		return nil, err
	}
	var entries []envfile.Entry
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, errors.New("object member name is not a string")
		}
		valueToken, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		value, ok := valueToken.(string)
		if !ok {
			return nil, errors.New("object member value is not a string")
		}
		entries = append(entries, envfile.Entry{Key: key, Value: value})
	}
	if err := expectDelim(decoder, '}'); err != nil {
		return nil, err
	}
	return entries, nil
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q", want)
	}
	return nil
}

// restrictToKey enforces single-key mode: exactly one entry, named key.
func restrictToKey(entries []envfile.Entry, key string) error {
	if key == "" {
		return nil
	}
	if len(entries) != 1 || entries[0].Key != key {
		return malformed(fmt.Sprintf("this portal only accepts %s", key), nil)
	}
	return nil
}
