package federation

import "encoding/json"

// Envelope is the wire form of a propagated relay instruction. It
// carries only what a peer needs to re-run its local broadcast: no
// provenance, no capability metadata. Origin names the initiating
// server and is informational.
type Envelope struct {
	Channel string `json:"channel"`
	Nick    string `json:"nick"`
	Text    string `json:"text"`
	Origin  string `json:"origin"`
}

func (e Envelope) encode() ([]byte, error) {
	return json.Marshal(e)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}
