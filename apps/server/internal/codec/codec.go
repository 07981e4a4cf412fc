package codec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pumpkin-tracker/tally"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Envelope types
const (
	TypeLeaderboard = "leaderboard"
	TypeView        = "view"
	TypeError       = "error"
)

type Encoding int

const (
	EncodingBinary Encoding = iota
	EncodingJSON
)

var ErrUnexpectedType = errors.New("unexpected envelope type")

// ParseEncoding maps the ?encoding= query value; anything but "json" is binary.
func ParseEncoding(raw string) Encoding {
	if strings.EqualFold(strings.TrimSpace(raw), "json") {
		return EncodingJSON
	}
	return EncodingBinary
}

// LeaderboardToProto converts a rendered page plus totals into a payload
func LeaderboardToProto(page tally.Page, stats tally.Stats, revision string) (*structpb.Struct, error) {
	items := make([]any, 0, len(page.Items))
	for _, s := range page.Items {
		items = append(items, map[string]any{
			"rank":      s.Rank,
			"user_id":   s.ExternalID,
			"username":  s.DisplayName,
			"count":     s.Count,
			"remaining": s.Remaining,
			"promoted":  s.Promoted,
		})
	}
	return structpb.NewStruct(map[string]any{
		"items":      items,
		"page":       page.Page,
		"page_size":  page.PageSize,
		"page_count": page.PageCount,
		"total":      page.Total,
		"cap":        tally.Cap,
		"revision":   revision,
		"stats": map[string]any{
			"participants": stats.Participants,
			"promoted":     stats.Promoted,
			"total_wins":   stats.TotalWins,
		},
	})
}

func ErrorToProto(code int32, msg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"code":    structpb.NewNumberValue(float64(code)),
		"message": structpb.NewStringValue(msg),
	}}
}

// WrapEnvelope creates an envelope with common fields
func WrapEnvelope(msgType string, seq uint64, payload *structpb.Struct) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":    structpb.NewStringValue(msgType),
		"seq":     structpb.NewNumberValue(float64(seq)),
		"ts_ms":   structpb.NewNumberValue(float64(time.Now().UnixMilli())),
		"payload": structpb.NewStructValue(payload),
	}}
}

func Marshal(env *structpb.Struct, enc Encoding) ([]byte, error) {
	if enc == EncodingJSON {
		return protojson.Marshal(env)
	}
	return proto.Marshal(env)
}

func Unmarshal(data []byte, enc Encoding) (*structpb.Struct, error) {
	env := &structpb.Struct{}
	var err error
	if enc == EncodingJSON {
		err = protojson.Unmarshal(data, env)
	} else {
		err = proto.Unmarshal(data, env)
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

// ViewFromProto reads a client "view" envelope into a leaderboard query.
// PageSize is left for the caller to decide.
func ViewFromProto(env *structpb.Struct) (tally.Query, error) {
	msgType := env.GetFields()["type"].GetStringValue()
	if msgType != TypeView {
		return tally.Query{}, fmt.Errorf("%w %q", ErrUnexpectedType, msgType)
	}
	payload := env.GetFields()["payload"].GetStructValue().GetFields()
	q := tally.Query{
		Search:       payload["search"].GetStringValue(),
		HidePromoted: payload["hide_promoted"].GetBoolValue(),
		Page:         int(payload["page"].GetNumberValue()),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	return q, nil
}
