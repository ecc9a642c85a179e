package socket

import (
	"encoding/json"
	"fmt"
	"time"

	"resto/internal/models"
)

const (
	EventTableUpdated   = "table.updated"
	EventLayoutUpdated  = "table.layout.updated"
	EventOrderCreated   = "order.created"
	EventOrderUpdated   = "order.updated"
	EventSummaryUpdated = "order.summary.updated"
	EventAlertCreated   = "alert.created"
	EventAlertUpdated   = "alert.updated"
	EventReady          = "socket.ready"
	EventHeartbeat      = "socket.heartbeat"
)

type Meta struct {
	Version   int64  `json:"version"`
	UpdatedAt string `json:"updatedAt"`
}

func NewMeta(version int64, at time.Time) Meta {
	return Meta{Version: version, UpdatedAt: FormatTime(at)}
}

type Envelope struct {
	Event    string          `json:"event"`
	TenantID string          `json:"tenantId,omitempty"`
	Meta     Meta            `json:"meta"`
	Data     json.RawMessage `json:"data"`
}

// Snapshot is the state a client receives right after subscribing.
type Snapshot struct {
	Tables  []models.Table
	Layout  models.Layout
	Alerts  []models.Alert
	Summary models.OrdersSummary
}

type ReadyPayload struct {
	Tables  []TablePayload `json:"tables"`
	Layout  LayoutPayload  `json:"layout"`
	Alerts  []AlertPayload `json:"alerts"`
	Summary SummaryPayload `json:"summary"`
}

type HeartbeatPayload struct {
	ServerTime string `json:"serverTime"`
}

func build(event string, meta Meta, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Envelope{Event: event, Meta: meta, Data: raw}, nil
}

func TableUpdated(t models.Table, meta Meta) (Envelope, error) {
	return build(EventTableUpdated, meta, Table(t))
}

func LayoutUpdated(l models.Layout, meta Meta) (Envelope, error) {
	return build(EventLayoutUpdated, meta, Layout(l))
}

func OrderCreated(o models.Order, meta Meta) (Envelope, error) {
	return build(EventOrderCreated, meta, Order(o))
}

func OrderUpdated(o models.Order, meta Meta) (Envelope, error) {
	return build(EventOrderUpdated, meta, Order(o))
}

func SummaryUpdated(s models.OrdersSummary, meta Meta) (Envelope, error) {
	return build(EventSummaryUpdated, meta, Summary(s))
}

func AlertCreated(a models.Alert, meta Meta) (Envelope, error) {
	return build(EventAlertCreated, meta, Alert(a))
}

func AlertUpdated(a models.Alert, meta Meta) (Envelope, error) {
	return build(EventAlertUpdated, meta, Alert(a))
}

func Ready(s Snapshot, meta Meta) (Envelope, error) {
	return build(EventReady, meta, ReadyPayload{
		Tables:  Tables(s.Tables),
		Layout:  Layout(s.Layout),
		Alerts:  Alerts(s.Alerts),
		Summary: Summary(s.Summary),
	})
}

func Heartbeat(meta Meta) (Envelope, error) {
	return build(EventHeartbeat, meta, HeartbeatPayload{ServerTime: meta.UpdatedAt})
}

func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event")
	}
	return env, nil
}

// ParseReady restores the snapshot carried by a socket.ready envelope.
func ParseReady(env Envelope) (Snapshot, error) {
	if env.Event != EventReady {
		return Snapshot{}, fmt.Errorf("expected %s, got %s", EventReady, env.Event)
	}
	var payload ReadyPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return Snapshot{}, fmt.Errorf("decode ready: %w", err)
	}
	snapshot := Snapshot{}
	for _, p := range payload.Tables {
		table, err := ParseTable(p)
		if err != nil {
			return Snapshot{}, err
		}
		snapshot.Tables = append(snapshot.Tables, table)
	}
	for _, p := range payload.Alerts {
		alert, err := ParseAlert(p)
		if err != nil {
			return Snapshot{}, err
		}
		snapshot.Alerts = append(snapshot.Alerts, alert)
	}
	layout, err := ParseLayout(payload.Layout)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Layout = layout
	summary, err := ParseSummary(payload.Summary)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Summary = summary
	return snapshot, nil
}

func DecodeTable(env Envelope) (models.Table, error) {
	var p TablePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return models.Table{}, fmt.Errorf("decode table: %w", err)
	}
	return ParseTable(p)
}

func DecodeOrder(env Envelope) (models.Order, error) {
	var p OrderPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return models.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return ParseOrder(p)
}

func DecodeAlert(env Envelope) (models.Alert, error) {
	var p AlertPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return models.Alert{}, fmt.Errorf("decode alert: %w", err)
	}
	return ParseAlert(p)
}
