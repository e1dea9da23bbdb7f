package event

import (
	"encoding/hex"
	"encoding/json"
)

// Raw carries an undecoded byte sequence for observability — used by
// decoder paths that need to surface an unexpected body (a fault
// annotation) without inventing physical-unit semantics for it.
type Raw []byte

func (r Raw) IsNaN() bool { return false }

func (r Raw) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(r))
}
