package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Event name prefixes of MinIO bucket notifications.
const (
	EventObjectCreated = "s3:ObjectCreated:"
	EventObjectRemoved = "s3:ObjectRemoved:"
)

// Notification is one bucket event.
type Notification struct {
	EventName   string `json:"event_name"`
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Size        int64  `json:"size,omitempty"`
	ETag        string `json:"etag,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// IsCreated reports whether the event adds or replaces an object.
func (n Notification) IsCreated() bool { return strings.HasPrefix(n.EventName, EventObjectCreated) }

// IsRemoved reports whether the event deletes an object.
func (n Notification) IsRemoved() bool { return strings.HasPrefix(n.EventName, EventObjectRemoved) }

type simpleEvent struct {
	EventName string `json:"eventName"`
	Bucket    struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key         string `json:"key"`
		Size        int64  `json:"size"`
		ETag        string `json:"eTag"`
		ContentType string `json:"contentType"`
	} `json:"object"`
}

type s3Event struct {
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key         string `json:"key"`
				Size        int64  `json:"size"`
				ETag        string `json:"eTag"`
				ContentType string `json:"contentType"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ErrMalformedNotification is returned for payloads of neither known shape.
var ErrMalformedNotification = errors.New("malformed bucket notification")

// ParseNotifications decodes a MinIO notification. Both the flat
// {eventName, bucket{name}, object{key,...}} shape and the S3 Records shape
// are accepted. Object keys in Records are URL-encoded and decoded here.
func ParseNotifications(data []byte) ([]Notification, error) {
	var s3 s3Event
	if err := json.Unmarshal(data, &s3); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	if len(s3.Records) > 0 {
		out := make([]Notification, 0, len(s3.Records))
		for _, r := range s3.Records {
			key, err := url.QueryUnescape(r.S3.Object.Key)
			if err != nil {
				key = r.S3.Object.Key
			}
			out = append(out, Notification{
				EventName:   r.EventName,
				Bucket:      r.S3.Bucket.Name,
				Key:         key,
				Size:        r.S3.Object.Size,
				ETag:        r.S3.Object.ETag,
				ContentType: r.S3.Object.ContentType,
			})
		}
		return out, nil
	}

	var ev simpleEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if ev.EventName == "" || ev.Bucket.Name == "" || ev.Object.Key == "" {
		return nil, fmt.Errorf("%w: eventName, bucket.name and object.key are required", ErrMalformedNotification)
	}

	return []Notification{{
		EventName:   ev.EventName,
		Bucket:      ev.Bucket.Name,
		Key:         ev.Object.Key,
		Size:        ev.Object.Size,
		ETag:        ev.Object.ETag,
		ContentType: ev.Object.ContentType,
	}}, nil
}
