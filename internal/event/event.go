package event

import (
	"go-aviator/internal/job"
	"go-aviator/internal/lib/logger/sl"

	"github.com/pusher/pusher-http-go/v5"
	"golang.org/x/exp/slog"
)

const channel = "aviator"

// PusherEvent mirrors round events to an external pusher channel so web
// clients that are not on the native socket still see live rounds.
type PusherEvent struct {
	log    *slog.Logger
	pusher *pusher.Client
}

func NewPusherEvent(log *slog.Logger, appID, key, secret, cluster string) *PusherEvent {
	return &PusherEvent{
		log: log,
		pusher: &pusher.Client{
			AppID:   appID,
			Key:     key,
			Secret:  secret,
			Cluster: cluster,
		},
	}
}

// Publish implements game.Broadcaster. Delivery runs on the job queue; a
// slow or failing pusher API never touches round timing.
func (p *PusherEvent) Publish(eventName string, data map[string]interface{}) {
	job.Dispatch(&sendEventJob{
		publisher: p,
		event:     eventName,
		data:      data,
	}, 0)
}

type sendEventJob struct {
	publisher *PusherEvent
	event     string
	data      map[string]interface{}
}

func (j *sendEventJob) Execute() {
	if err := j.publisher.pusher.Trigger(channel, j.event, j.data); err != nil {
		j.publisher.log.Error("failed to trigger pusher event",
			sl.String("event", j.event), sl.Err(err))
	}
}

// Fanout forwards each event to every broadcaster. It lets the engine feed
// both the native socket hub and pusher without knowing about either.
type Fanout []Broadcaster

type Broadcaster interface {
	Publish(event string, data map[string]interface{})
}

func (f Fanout) Publish(event string, data map[string]interface{}) {
	for _, b := range f {
		b.Publish(event, data)
	}
}
