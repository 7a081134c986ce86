package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"options-flow-tracker/models"
)

// ErrUnsupportedType marks a well-formed frame whose type tag this client does not consume
var ErrUnsupportedType = errors.New("unsupported message type")

// Decoder turns raw stream frames into Messages and stamps arrival order
type Decoder struct {
	seq atomic.Uint64
	now func() time.Time
}

// NewDecoder creates a decoder using the wall clock
func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// DecodeText decodes a JSON text frame
func (d *Decoder) DecodeText(data []byte) (Message, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, models.NewMalformedMessage("invalid json", data, err)
	}
	if fields == nil {
		return nil, models.NewMalformedMessage("not an object", data, nil)
	}
	return d.decodeFields(fields, data)
}

// DecodeBinary decodes a binary frame carrying a google.protobuf.Struct
func (d *Decoder) DecodeBinary(data []byte) (Message, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return nil, models.NewMalformedMessage("invalid protobuf struct", data, err)
	}
	return d.decodeFields(st.AsMap(), data)
}

func (d *Decoder) decodeFields(fields map[string]interface{}, raw []byte) (Message, error) {
	kindStr, ok := fields["type"].(string)
	if !ok || kindStr == "" {
		return nil, models.NewMalformedMessage("missing type tag", raw, nil)
	}
	kind := models.EventKind(strings.ToUpper(kindStr))

	switch {
	case kind.IsFlow():
		// At the top level "type" is the kind tag; inside a nested payload it is the option type
		optionKeys := []string{"optionType", "right"}
		payload := fields
		if nested, ok := fields["payload"].(map[string]interface{}); ok {
			payload = nested
			optionKeys = []string{"optionType", "type", "right"}
		}
		ev := flowEventFromFields(payload, optionKeys)
		ev.Kind = kind
		ev.Seq = d.seq.Add(1)
		ev.ReceivedAt = d.now()
		return &FlowMessage{Event: ev}, nil

	case kind.IsLifecycle():
		return &LifecycleMessage{
			Type:       kind,
			Seq:        d.seq.Add(1),
			ReceivedAt: d.now(),
		}, nil

	default:
		return nil, models.NewMalformedMessage(fmt.Sprintf("type %q", kindStr), raw, ErrUnsupportedType)
	}
}

// flowEventFromFields never fails: absent or malformed numbers become 0
func flowEventFromFields(m map[string]interface{}, optionKeys []string) models.FlowEvent {
	ev := models.FlowEvent{
		Symbol:          stringField(m, "symbol"),
		ContractID:      stringField(m, "conid", "contractId"),
		Direction:       models.Direction(strings.ToUpper(stringField(m, "direction"))),
		Size:            floatField(m, "size", "tradeSize"),
		Premium:         floatField(m, "premium"),
		Strike:          floatField(m, "strike"),
		OptionType:      stringField(m, optionKeys...),
		StanceScore:     floatField(m, "stanceScore"),
		StanceLabel:     stringField(m, "stanceLabel"),
		Confidence:      floatField(m, "confidence"),
		Classifications: stringList(m["classifications"]),
		VolOIRatio:      optionalFloat(m, "volOiRatio", "volumeOverOpenInterest"),
		Timestamp:       stringField(m, "timestamp"),
	}

	if g, ok := m["greeks"].(map[string]interface{}); ok {
		ev.Greeks = &models.Greeks{
			Delta:      floatField(g, "delta"),
			Gamma:      floatField(g, "gamma"),
			Theta:      floatField(g, "theta"),
			ImpliedVol: floatField(g, "impliedVol", "iv"),
		}
	}
	return ev
}

// toFloat converts JSON-ish scalars to float64
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return models.ParseNumber(n)
	default:
		return 0, false
	}
}

func floatField(m map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if f, ok := toFloat(v); ok {
				return f
			}
		}
	}
	return 0
}

func optionalFloat(m map[string]interface{}, keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if f, ok := toFloat(v); ok {
				return &f
			}
		}
	}
	return nil
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, strings.ToUpper(s))
			}
		}
		return out
	case string:
		if list == "" {
			return nil
		}
		return []string{strings.ToUpper(list)}
	default:
		return nil
	}
}
