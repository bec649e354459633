package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint derives the stable cache key for a call: the call site's
// identity plus a canonical serialization of its arguments. Keyword
// arguments are serialized in sorted key order, so two maps with equal
// content always produce equal fingerprints regardless of construction
// order. (encoding/json already sorts map keys; the explicit pass below
// keeps the ordering guarantee independent of that implementation detail.)
func Fingerprint(site string, args []interface{}, kwargs map[string]interface{}) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00", site)

	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			// Unserializable arguments degrade to their formatted value; the
			// fingerprint stays deterministic for any given value.
			b = []byte(fmt.Sprintf("%#v", a))
		}
		h.Write(b)
		h.Write([]byte{0})
	}

	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b, err := json.Marshal(kwargs[k])
		if err != nil {
			b = []byte(fmt.Sprintf("%#v", kwargs[k]))
		}
		fmt.Fprintf(h, "%s=", k)
		h.Write(b)
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
