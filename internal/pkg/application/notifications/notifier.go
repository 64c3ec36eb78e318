package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

type Notifier interface {
	Start() error
	Stop() error

	BatchCommitted(ctx context.Context, cmds []commands.WriteCommand)
}

var tracer = otel.Tracer("json-commands/notifier")

// Notification describes a committed write batch
type Notification struct {
	Type     string    `json:"type"`
	Commands []Change  `json:"commands"`
	At       time.Time `json:"notifiedAt"`
}

type Change struct {
	RecordType string   `json:"recordType"`
	Deleted    []string `json:"deleted,omitempty"`
	Updated    []string `json:"updated,omitempty"`
	Inserted   []string `json:"inserted,omitempty"`
}

func NewNotification(cmds []commands.WriteCommand) Notification {
	n := Notification{
		Type:     "BatchCommitted",
		Commands: make([]Change, 0, len(cmds)),
		At:       time.Now().UTC(),
	}

	for _, cmd := range cmds {
		n.Commands = append(n.Commands, Change{
			RecordType: cmd.Entity,
			Deleted:    ids(cmd.Delete),
			Updated:    ids(cmd.Update),
			Inserted:   ids(cmd.Insert),
		})
	}

	return n
}

type action func()

type notifier struct {
	// mu guards started and keeps BatchCommitted from queueing after Stop has closed the queue
	mu       sync.RWMutex
	started  bool
	endpoint string

	queue chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	return &notifier{
		endpoint: endpoint,
		queue:    make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

func (n *notifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		resultChan := make(chan bool)

		n.queue <- func() {
			// close the queue to signal the consumers that we are going out of business
			close(n.queue)
			resultChan <- true
		}

		<-resultChan
		n.started = false
	}
	return nil
}

func (n *notifier) BatchCommitted(ctx context.Context, cmds []commands.WriteCommand) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.started {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)
	notification := NewNotification(cmds)

	ctx, span := tracer.Start(
		tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
		"post",
	)

	n.queue <- func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = postNotification(ctx, notification, n.endpoint)
		if err != nil {
			logger.Error("failed to post notification", "err", err.Error())
		}
	}
}

func postNotification(ctx context.Context, notification Notification, endpoint string) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint responded with status code %d", resp.StatusCode)
	}

	return nil
}

func ids(records []schema.Record) []string {
	if len(records) == 0 {
		return nil
	}

	result := make([]string, 0, len(records))
	for _, r := range records {
		result = append(result, r.ID().String())
	}
	return result
}

func (n *notifier) run() {
	// repeat until the queue is closed
	for action := range n.queue {
		if action == nil {
			return
		}

		action()
	}
}
