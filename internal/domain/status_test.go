package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLevel_Order(t *testing.T) {
	assert.Less(t, StatusGreen, StatusYellow)
	assert.Less(t, StatusYellow, StatusOrange)
	assert.Less(t, StatusOrange, StatusRed)
	assert.Equal(t, 3, int(StatusRed))
}

func TestParseStatusLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    StatusLevel
		wantErr bool
	}{
		{"green", "green", StatusGreen, false},
		{"yellow", "yellow", StatusYellow, false},
		{"orange", "orange", StatusOrange, false},
		{"red", "red", StatusRed, false},
		{"unknown", "purple", StatusGreen, true},
		{"case sensitive", "Red", StatusGreen, true},
		{"empty", "", StatusGreen, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatusLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusLevel_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Status StatusLevel `json:"status"`
	}{StatusOrange})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"orange"}`, string(data))

	var decoded struct {
		Status StatusLevel `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"yellow"}`), &decoded))
	assert.Equal(t, StatusYellow, decoded.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"blue"}`), &decoded))

	_, err = json.Marshal(StatusLevel(9))
	assert.Error(t, err)
}

func TestStatusLevel_Label(t *testing.T) {
	assert.Equal(t, "Green", StatusGreen.Label())
	assert.Equal(t, "Red", StatusRed.Label())
	assert.Equal(t, "StatusLevel(7)", StatusLevel(7).String())
}

func TestMaxStatus(t *testing.T) {
	assert.Equal(t, StatusRed, MaxStatus(StatusRed, StatusYellow))
	assert.Equal(t, StatusOrange, MaxStatus(StatusGreen, StatusOrange))
	assert.Equal(t, StatusGreen, MaxStatus(StatusGreen, StatusGreen))
}

func TestEvent_Apply(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	event := &Event{CreatedAt: t1, UpdatedAt: t1}

	event.Apply(&EventUpdate{Status: StatusYellow, Message: "latency rising", CreatedAt: t1})
	assert.Equal(t, StatusYellow, event.Status)
	assert.Equal(t, StatusYellow, event.PeakStatus)
	assert.Equal(t, "latency rising", event.Description)

	event.Apply(&EventUpdate{Status: StatusRed, Message: "database down", CreatedAt: t2})
	assert.Equal(t, StatusRed, event.Status)
	assert.Equal(t, StatusRed, event.PeakStatus)
	assert.Equal(t, "latency rising", event.Description, "description is filled once")
	assert.Equal(t, "database down", event.Message)

	event.Apply(&EventUpdate{Status: StatusGreen, Message: "recovered", CreatedAt: t3})
	assert.Equal(t, StatusGreen, event.Status)
	assert.Equal(t, StatusRed, event.PeakStatus, "peak never decreases")
	assert.Equal(t, t3, event.UpdatedAt)
	assert.Equal(t, 2*time.Hour, event.Duration())
	assert.False(t, event.IsOpen())
}

func TestEventUpdate_IsAfter(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	earlier := &EventUpdate{CreatedAt: t1, Sequence: 5}
	later := &EventUpdate{CreatedAt: t1.Add(time.Second), Sequence: 1}
	tie := &EventUpdate{CreatedAt: t1, Sequence: 6}

	assert.True(t, later.IsAfter(earlier))
	assert.False(t, earlier.IsAfter(later))
	assert.True(t, tie.IsAfter(earlier), "ties broken by insertion sequence")
	assert.False(t, earlier.IsAfter(tie))
}

func TestRole_HasPermission(t *testing.T) {
	assert.True(t, RoleAdmin.HasPermission(RoleOperator))
	assert.True(t, RoleOperator.HasPermission(RoleOperator))
	assert.False(t, RoleViewer.HasPermission(RoleOperator))
	assert.False(t, Role("root").HasPermission(RoleViewer))
	assert.False(t, Role("root").IsValid())
}
