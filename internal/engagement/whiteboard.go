package engagement

import "time"

// TopicWhiteboardStrokes carries strokes fanned out to whiteboard room members.
const TopicWhiteboardStrokes = "whiteboard.strokes"

// Point is a single stroke coordinate in canvas space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeEvent is one whiteboard stroke broadcast to a room.
type StrokeEvent struct {
	ID      string    `json:"id"`
	Room    string    `json:"room"`
	Subject string    `json:"subject"`
	Color   string    `json:"color"`
	Width   float64   `json:"width"`
	Points  []Point   `json:"points"`
	SentAt  time.Time `json:"sentAt"`
}
