// Package bbox is an optional helper for producers that want to attach
// bounding-box annotations to a frame's metadata in the layout the
// reference viewer expects: a MessagePack map with a "bboxes" key holding
// an array of Box records. rvideo's server treats metadata as an opaque
// byte blob (spec.md §6) and never imports this package itself; it exists
// purely for producer-side convenience, grounded on original_source's
// BoundingBox type (src/lib.rs) and FrameInfo metadata struct
// (examples/server-custom.rs), re-expressed with MessagePack struct tags
// instead of serde rename attributes.
package bbox

import "github.com/vmihailenco/msgpack/v5"

// Box is one annotated region: an RGB color plus a top-left-anchored
// rectangle in pixel coordinates.
type Box struct {
	Color  [3]uint8 `msgpack:"c"`
	X      uint16   `msgpack:"x"`
	Y      uint16   `msgpack:"y"`
	Width  uint16   `msgpack:"w"`
	Height uint16   `msgpack:"h"`
}

// Metadata is the top-level map encoded into a Frame's metadata bytes.
// Extra is merged alongside "bboxes" so callers can carry their own
// fields (a frame source tag, a sequence number, ...) without rvideo
// needing to know about them.
type Metadata struct {
	Boxes []Box
	Extra map[string]any
}

// Encode serializes m into the MessagePack layout clients expect:
// a map with a "bboxes" key plus whatever keys are present in m.Extra.
func Encode(m Metadata) ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["bboxes"] = m.Boxes
	return msgpack.Marshal(out)
}

// Decode parses metadata bytes produced by Encode (or any MessagePack map
// carrying a "bboxes" key) back into a Metadata value.
func Decode(data []byte) (Metadata, error) {
	var raw map[string]any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return Metadata{}, err
	}

	m := Metadata{Extra: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "bboxes" {
			continue
		}
		m.Extra[k] = v
	}

	if rawBoxes, ok := raw["bboxes"]; ok {
		reencoded, err := msgpack.Marshal(rawBoxes)
		if err != nil {
			return Metadata{}, err
		}
		if err := msgpack.Unmarshal(reencoded, &m.Boxes); err != nil {
			return Metadata{}, err
		}
	}
	return m, nil
}
