// Package models defines the request, transcript and delivery data structures.
package models

// Direction identifies one of the two audio paths of a call.
type Direction string

const (
	FromCustomer Direction = "FROM_CUSTOMER"
	ToCustomer   Direction = "TO_CUSTOMER"
)

// TrackName returns the media track carrying audio for the direction.
func (d Direction) TrackName() string {
	if d == FromCustomer {
		return "AUDIO_FROM_CUSTOMER"
	}
	return "AUDIO_TO_CUSTOMER"
}

// SenderType returns the participant role for segments spoken in this direction.
func (d Direction) SenderType() SenderType {
	if d == FromCustomer {
		return EndUser
	}
	return HumanAgent
}

// SenderType is the participant role sent with every transcript message.
type SenderType string

const (
	EndUser    SenderType = "END_USER"
	HumanAgent SenderType = "HUMAN_AGENT"
)

// TranscriptSegment is one finalized recognition result ready for delivery.
// StartTime and EndTime are absolute epoch milliseconds.
type TranscriptSegment struct {
	MessageID     string
	Text          string
	StartTime     int64
	EndTime       int64
	ParticipantID string
	SenderType    SenderType
	Direction     Direction
}

// MessagePayload is the JSON body posted to the voice call messages endpoint.
type MessagePayload struct {
	ParticipantID string     `json:"participantId"`
	MessageID     string     `json:"messageId"`
	StartTime     int64      `json:"startTime"`
	EndTime       int64      `json:"endTime"`
	Content       string     `json:"content"`
	SenderType    SenderType `json:"senderType"`
}

// Payload converts the segment into its wire representation.
func (s TranscriptSegment) Payload() MessagePayload {
	return MessagePayload{
		ParticipantID: s.ParticipantID,
		MessageID:     s.MessageID,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Content:       s.Text,
		SenderType:    s.SenderType,
	}
}

// SegmentEvent mirrors a delivered segment onto the event bus.
type SegmentEvent struct {
	EventType     string     `json:"eventType"`
	VoiceCallID   string     `json:"voiceCallId"`
	Direction     Direction  `json:"direction"`
	MessageID     string     `json:"messageId"`
	ParticipantID string     `json:"participantId"`
	SenderType    SenderType `json:"senderType"`
	Text          string     `json:"text"`
	StartTime     int64      `json:"startTime"`
	EndTime       int64      `json:"endTime"`
	StatusCode    int        `json:"statusCode"`
	Timestamp     int64      `json:"timestamp"`
}

// StatusEvent reports session-level conditions such as rate limiting.
type StatusEvent struct {
	EventType   string `json:"eventType"`
	VoiceCallID string `json:"voiceCallId"`
	Direction   string `json:"direction,omitempty"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Result is the fixed response shape returned to the invoker.
type Result string

const (
	ResultSuccess Result = "Success"
	ResultFailed  Result = "Failed"
)

// JSON renders the invocation response body.
func (r Result) JSON() string {
	return `{"result":"` + string(r) + `"}`
}
