package event

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// MarshalLoad serialises a Load to JSON.
func MarshalLoad(l *Load) ([]byte, error) {
	return json.Marshal(l)
}

// UnmarshalLoad deserialises a Load from JSON.
func UnmarshalLoad(data []byte) (*Load, error) {
	var l Load
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// MarshalReport serialises a Report to JSON.
func MarshalReport(r *Report) ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalReport deserialises a Report from JSON.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// HashHTML returns the SHA-256 hex digest of raw HTML bytes.
func HashHTML(html []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(html))
}
