package gateway

import (
	"encoding/json"
	"fmt"
)

// Event is the part of a Paystack webhook delivery the billing core reads.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body. The reference is required.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if ev.Data.Reference == "" {
		return nil, fmt.Errorf("webhook event %q has no reference", ev.Event)
	}
	return &ev, nil
}
