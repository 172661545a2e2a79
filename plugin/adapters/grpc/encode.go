package grpc

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/secmc/blockparty/plugin/event"
	"github.com/secmc/blockparty/plugin/ports"
)

// EncodeEvent renders one dispatched event as a serialized structpb.Struct.
// Every message has id, kind and cancelled; the rest depends on the kind.
func EncodeEvent(id uint64, e ports.Event, out ports.Outcome) ([]byte, error) {
	fields := map[string]any{
		"id":        strconv.FormatUint(id, 10),
		"kind":      e.Kind(),
		"cancelled": out.Cancel,
	}
	switch e := e.(type) {
	case event.Join:
		fields["actor"] = e.Player.String()
		fields["name"] = e.Name
	case event.Quit:
		fields["actor"] = e.Player.String()
		fields["name"] = e.Name
	case event.Activate:
		fields["actor"] = e.Player.String()
		fields["name"] = e.Name
		fields["location"] = location(e.Location)
	case event.Mine:
		fields["actor"] = e.Player.String()
		fields["name"] = e.Name
		fields["location"] = location(e.Location)
		fields["material"] = string(e.Material)
		fields["clear_drops"] = out.ClearDrops
	case event.Drop:
		fields["actor"] = e.Player.String()
		fields["access"] = e.Access
	case event.Transfer:
		fields["actor"] = e.Player.String()
		fields["access"] = e.Access
	case event.WorldClose:
		fields["world"] = e.World
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Kind(), err)
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Kind(), err)
	}
	return data, nil
}

func location(l ports.Location) map[string]any {
	return map[string]any{"world": l.World, "x": l.X, "y": l.Y, "z": l.Z}
}

// DecodeEvent parses a message produced by EncodeEvent.
func DecodeEvent(data []byte) (*structpb.Struct, error) {
	st := new(structpb.Struct)
	if err := proto.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return st, nil
}

func encodeRequest(kinds []string) ([]byte, error) {
	list := make([]any, len(kinds))
	for i, k := range kinds {
		list[i] = k
	}
	st, err := structpb.NewStruct(map[string]any{"kinds": list})
	if err != nil {
		return nil, fmt.Errorf("encode feed request: %w", err)
	}
	return proto.Marshal(st)
}

// decodeRequest reads the optional "kinds" filter. An empty request means
// every kind.
func decodeRequest(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	st := new(structpb.Struct)
	if err := proto.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode feed request: %w", err)
	}
	var kinds []string
	for _, v := range st.GetFields()["kinds"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			kinds = append(kinds, s)
		}
	}
	return kinds, nil
}
