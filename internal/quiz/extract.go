package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrGenerationParse is returned when generator output holds no usable JSON.
var ErrGenerationParse = errors.New("generation output could not be parsed")

// ExtractJSONArray returns the elements of the first well-formed JSON array
// in text. Each '[' is tried in order and decoding stops at the end of the
// array, so surrounding prose and code fences are ignored.
func ExtractJSONArray(text string) ([]json.RawMessage, error) {
	for i := strings.IndexByte(text, '['); i >= 0; {
		var elems []json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&elems); err == nil {
			if elems == nil {
				elems = []json.RawMessage{}
			}
			return elems, nil
		}
		next := strings.IndexByte(text[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, ErrGenerationParse
}

// ExtractJSONObject returns the first well-formed JSON object in text.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		var obj json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&obj); err == nil && bytes.HasPrefix(obj, []byte("{")) {
			return obj, nil
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, ErrGenerationParse
}
