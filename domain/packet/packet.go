// Package packet defines the response envelope of the read operations.
package packet

import (
	"encoding/json"

	"mini-social/domain/post"
	"mini-social/domain/profile"
)

// Bundle is the success payload: an optional profile plus every user and
// post referenced by it, keyed by id.
type Bundle struct {
	Profile *profile.Profile        `json:"profile,omitempty"`
	Users   map[string]profile.User `json:"users"`
	Posts   map[string]post.Post    `json:"posts"`
}

func NewBundle() *Bundle {
	return &Bundle{
		Users: make(map[string]profile.User),
		Posts: make(map[string]post.Post),
	}
}

// DataPacket holds either a Bundle or an error message, never both.
type DataPacket struct {
	bundle *Bundle
	err    string
}

func Success(b *Bundle) DataPacket {
	if b == nil {
		b = NewBundle()
	}
	return DataPacket{bundle: b}
}

func Failure(msg string) DataPacket {
	return DataPacket{err: msg}
}

func (dp DataPacket) Bundle() (*Bundle, bool) {
	return dp.bundle, dp.bundle != nil
}

func (dp DataPacket) Err() (string, bool) {
	return dp.err, dp.bundle == nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (dp DataPacket) MarshalJSON() ([]byte, error) {
	if dp.bundle == nil {
		return json.Marshal(errorBody{Error: dp.err})
	}
	return json.Marshal(dp.bundle)
}

func (dp *DataPacket) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		*dp = Failure(msg)
		return nil
	}
	b := NewBundle()
	if err := json.Unmarshal(data, b); err != nil {
		return err
	}
	*dp = Success(b)
	return nil
}
