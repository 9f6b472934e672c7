package realtime

import (
	"encoding/json"
	"time"
)

// Topic is a broadcast channel a connection can subscribe to.
type Topic string

const (
	TopicQR         Topic = "qr"
	TopicAttendance Topic = "attendance"
	TopicAbsence    Topic = "absence"
	TopicMessage    Topic = "message"
)

// ParseTopic returns the topic named s, or false if s is not one of the known topics.
func ParseTopic(s string) (Topic, bool) {
	switch t := Topic(s); t {
	case TopicQR, TopicAttendance, TopicAbsence, TopicMessage:
		return t, true
	}
	return "", false
}

// Event is a closed set of broadcastable state changes. Each variant
// serializes as {"type": <topic>, ...fields}.
type Event interface {
	Topic() Topic
	isEvent()
}

// QREvent announces a freshly issued check-in credential.
type QREvent struct {
	QRCode  string `json:"qrCode"`
	Content string `json:"content"`
}

// AttendanceEvent carries the current status of one user's record.
type AttendanceEvent struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	User   string `json:"user"`
	Status string `json:"status"`
}

// AbsenceEvent carries a newly filed absence request.
type AbsenceEvent struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"userId"`
	Kind    string `json:"absenceType"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// MessageEvent carries a newly posted message.
type MessageEvent struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func (QREvent) Topic() Topic         { return TopicQR }
func (AttendanceEvent) Topic() Topic { return TopicAttendance }
func (AbsenceEvent) Topic() Topic    { return TopicAbsence }
func (MessageEvent) Topic() Topic    { return TopicMessage }

func (QREvent) isEvent()         {}
func (AttendanceEvent) isEvent() {}
func (AbsenceEvent) isEvent()    {}
func (MessageEvent) isEvent()    {}

// Encode renders e as a server frame.
func Encode(e Event) ([]byte, error) {
	switch v := e.(type) {
	case QREvent:
		return json.Marshal(struct {
			Type Topic `json:"type"`
			QREvent
		}{v.Topic(), v})
	case AttendanceEvent:
		return json.Marshal(struct {
			Type Topic `json:"type"`
			AttendanceEvent
		}{v.Topic(), v})
	case AbsenceEvent:
		return json.Marshal(struct {
			Type Topic `json:"type"`
			AbsenceEvent
		}{v.Topic(), v})
	case MessageEvent:
		return json.Marshal(struct {
			Type Topic `json:"type"`
			MessageEvent
		}{v.Topic(), v})
	}
	return nil, errUnknownEvent
}
