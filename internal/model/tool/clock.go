package tool

import (
	"context"
	"encoding/json"
	"time"
)

// ClockTool reports the current time; the one capability the backend can
// always serve locally. Remote tools register at startup.
type ClockTool struct {
	Now func() time.Time
}

func (ClockTool) Name() string { return "get_current_time" }

func (ClockTool) Description() string {
	return "Returns the current date and time in RFC3339 format. Takes an optional IANA timezone argument."
}

func (ClockTool) Params() map[string]Param {
	return map[string]Param{
		"timezone": {Type: "string", Description: "IANA timezone name, e.g. Europe/Berlin", Required: false},
	}
}

func (t ClockTool) Call(_ context.Context, arguments string) (Result, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}

	var args struct {
		Timezone string `json:"timezone"`
	}
	_ = json.Unmarshal([]byte(arguments), &args)

	at := now()
	if args.Timezone != "" {
		if loc, err := time.LoadLocation(args.Timezone); err == nil {
			at = at.In(loc)
		}
	}

	content, err := json.Marshal(map[string]string{"time": at.Format(time.RFC3339)})
	if err != nil {
		return Result{}, err
	}
	return Result{Content: string(content)}, nil
}
