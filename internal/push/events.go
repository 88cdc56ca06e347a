package push

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventStatusChange EventType = "status_change"
	EventTaskUpdate   EventType = "task_update"
)

// Event is the record delivered to every live connection of a principal.
// The JSON shape is the browser-facing contract; both the SSE and the
// websocket transports carry it unchanged.
type Event struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"taskId"`
	Data   any       `json:"data"`
}

type StatusChangeData struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TaskUpdateData struct {
	Title string `json:"title"`
}

func StatusChange(taskID, status string, updatedAt time.Time) Event {
	return Event{
		Type:   EventStatusChange,
		TaskID: taskID,
		Data: StatusChangeData{
			Status:    status,
			UpdatedAt: updatedAt.UTC(),
		},
	}
}

func TitleUpdate(taskID, title string) Event {
	return Event{
		Type:   EventTaskUpdate,
		TaskID: taskID,
		Data:   TaskUpdateData{Title: title},
	}
}

// EncodeFrame serializes an event as a server-sent-event text frame:
// "data: <json>\n\n".
func EncodeFrame(evt Event) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
