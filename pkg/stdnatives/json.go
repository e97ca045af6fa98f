package stdnatives

import (
	"errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/highesttt/pawn-natives/pkg/natives"
)

var errInvalidJSON = errors.New("invalid JSON document")

// lookupJSON resolves path in doc. A missing path is not an error, the
// native simply reports false.
func lookupJSON(doc, path string) (gjson.Result, error) {
	if !gjson.Valid(doc) {
		return gjson.Result{}, errInvalidJSON
	}
	return gjson.Get(doc, path), nil
}

func registerJSON(reg *natives.Registry) error {
	return declare(reg,
		// json_get_string(const json[], const path[], value[], size)
		declaration{"json_get_string", func(doc, path string, value *string) (bool, error) {
			res, err := lookupJSON(doc, path)
			if err != nil || !res.Exists() {
				return false, err
			}
			*value = res.String()
			return true, nil
		}},
		// json_get_int(const json[], const path[], &value)
		declaration{"json_get_int", func(doc, path string, value natives.Ref[int32]) (bool, error) {
			res, err := lookupJSON(doc, path)
			if err != nil || !res.Exists() {
				return false, err
			}
			value.Set(int32(res.Int()))
			return true, nil
		}},
		// json_get_float(const json[], const path[], &Float:value)
		declaration{"json_get_float", func(doc, path string, value natives.Ref[float32]) (bool, error) {
			res, err := lookupJSON(doc, path)
			if err != nil || !res.Exists() {
				return false, err
			}
			value.Set(float32(res.Float()))
			return true, nil
		}},
		// json_set_string(json[], size, const path[], const value[])
		declaration{"json_set_string", func(doc *string, path, value string) (bool, error) {
			if *doc == "" {
				*doc = "{}"
			}
			out, err := sjson.Set(*doc, path, value)
			if err != nil {
				return false, err
			}
			*doc = out
			return true, nil
		}},
	)
}
