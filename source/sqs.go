package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ErrClosed is returned by Receive once the source is closed and drained.
var ErrClosed = errors.New("source closed")

// NameAttribute is the message attribute carrying the file name of a
// queued tree. Messages without it are named after their message id.
const NameAttribute = "filename"

// sqsBatchMax is the SQS limit on entries per batch call.
const sqsBatchMax = 10

type SQSConfig struct {
	WaitTimeSeconds int32
	MaxMessages     int32
	VisibilityTO    int32

	Pollers int
	BufSize int

	// FailVisibilityTimeoutSeconds, when set, makes Fail shorten the
	// lease so the message is redelivered sooner.
	FailVisibilityTimeoutSeconds *int32
}

var DefaultSQSConfig = SQSConfig{
	WaitTimeSeconds: 20,
	MaxMessages:     10,
	VisibilityTO:    60,
	Pollers:         1,
	BufSize:         64,
}

func (c SQSConfig) Validate() error {
	if c.WaitTimeSeconds < 0 || c.WaitTimeSeconds > 20 {
		return errors.New("WaitTimeSeconds must be between 0 and 20")
	}
	if c.MaxMessages < 1 || c.MaxMessages > sqsBatchMax {
		return errors.New("MaxMessages must be between 1 and 10")
	}
	if c.VisibilityTO < 0 {
		return errors.New("VisibilityTO must be >= 0")
	}
	if c.Pollers < 1 {
		return errors.New("Pollers must be >= 1")
	}
	if c.BufSize < 1 {
		return errors.New("BufSize must be >= 1")
	}
	if c.FailVisibilityTimeoutSeconds != nil && *c.FailVisibilityTimeoutSeconds < 0 {
		return errors.New("FailVisibilityTimeoutSeconds must be >= 0")
	}
	return nil
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	ChangeMessageVisibilityBatch(ctx context.Context, params *sqs.ChangeMessageVisibilityBatchInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityBatchOutput, error)
}

// SQS receives metadata trees queued as JSON message bodies. Pollers
// long-poll the queue into a buffer that Receive drains.
type SQS struct {
	cfg      SQSConfig
	client   sqsAPI
	queueURL string

	buf chan *sqstypes.Message

	closeOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSQS starts the pollers. They stop when ctx is done or Close is called.
func NewSQS(ctx context.Context, client sqsAPI, queueURL string, cfg SQSConfig) (*SQS, error) {
	s, pollCtx, err := newSQS(ctx, client, queueURL, cfg)
	if err != nil {
		return nil, err
	}
	s.start(pollCtx)
	return s, nil
}

func newSQS(ctx context.Context, client sqsAPI, queueURL string, cfg SQSConfig) (*SQS, context.Context, error) {
	if client == nil {
		return nil, nil, errors.New("sqs client is nil")
	}
	if queueURL == "" {
		return nil, nil, errors.New("queue url is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("sqs config: %w", err)
	}
	pollCtx, cancel := context.WithCancel(ctx)
	return &SQS{
		cfg:      cfg,
		client:   client,
		queueURL: queueURL,
		buf:      make(chan *sqstypes.Message, cfg.BufSize),
		cancel:   cancel,
	}, pollCtx, nil
}

func (s *SQS) start(ctx context.Context) {
	s.wg.Add(s.cfg.Pollers)
	for i := 0; i < s.cfg.Pollers; i++ {
		go func() {
			defer s.wg.Done()
			s.poll(ctx)
		}()
	}
	go func() {
		s.wg.Wait()
		close(s.buf)
	}()
}

func (s *SQS) poll(ctx context.Context) {
	for ctx.Err() == nil {
		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.WaitTimeSeconds+5)*time.Second)
		out, err := s.client.ReceiveMessage(reqCtx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(s.queueURL),
			MaxNumberOfMessages:   s.cfg.MaxMessages,
			WaitTimeSeconds:       s.cfg.WaitTimeSeconds,
			VisibilityTimeout:     s.cfg.VisibilityTO,
			MessageAttributeNames: []string{NameAttribute},
		})
		cancel()

		if err != nil {
			select {
			case <-time.After(250 * time.Millisecond):
				continue
			case <-ctx.Done():
				return
			}
		}

		for i := range out.Messages {
			select {
			case s.buf <- &out.Messages[i]:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops the pollers. Buffered messages can still be received.
func (s *SQS) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *SQS) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m, ok := <-s.buf:
		if !ok {
			return nil, ErrClosed
		}
		return &sqsMessage{src: s, m: m}, nil
	}
}

func (s *SQS) AckBatch(ctx context.Context, msgs []Message) error {
	metas := make([]AckMetadata, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		am, ok := m.(ackMetable)
		if !ok {
			return fmt.Errorf("message %T has no ack handle", m)
		}
		meta, ok := am.AckMeta()
		if !ok {
			return fmt.Errorf("message %q has no receipt handle", m.Data().Name)
		}
		metas = append(metas, meta)
	}
	return s.AckBatchMeta(ctx, metas)
}

// AckBatchMeta deletes the messages in chunks of ten.
func (s *SQS) AckBatchMeta(ctx context.Context, metas []AckMetadata) error {
	entries := make([]sqstypes.DeleteMessageBatchRequestEntry, 0, sqsBatchMax)
	for chunk := range chunks(metas) {
		entries = entries[:0]
		for i := range chunk {
			entries = append(entries, sqstypes.DeleteMessageBatchRequestEntry{
				Id:            aws.String(chunk[i].ID),
				ReceiptHandle: aws.String(chunk[i].Handle),
			})
		}
		out, err := s.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(s.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("sqs delete batch: %w", err)
		}
		if err := batchFailure("delete", out.Failed); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQS) ExtendVisibilityBatch(ctx context.Context, metas []AckMetadata, timeoutSeconds int32) error {
	entries := make([]sqstypes.ChangeMessageVisibilityBatchRequestEntry, 0, sqsBatchMax)
	for chunk := range chunks(metas) {
		entries = entries[:0]
		for i := range chunk {
			entries = append(entries, sqstypes.ChangeMessageVisibilityBatchRequestEntry{
				Id:                aws.String(chunk[i].ID),
				ReceiptHandle:     aws.String(chunk[i].Handle),
				VisibilityTimeout: timeoutSeconds,
			})
		}
		out, err := s.client.ChangeMessageVisibilityBatch(ctx, &sqs.ChangeMessageVisibilityBatchInput{
			QueueUrl: aws.String(s.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("sqs visibility batch: %w", err)
		}
		if err := batchFailure("visibility", out.Failed); err != nil {
			return err
		}
	}
	return nil
}

// chunks yields metas in slices of at most sqsBatchMax.
func chunks(metas []AckMetadata) func(yield func([]AckMetadata) bool) {
	return func(yield func([]AckMetadata) bool) {
		for i := 0; i < len(metas); i += sqsBatchMax {
			end := min(i+sqsBatchMax, len(metas))
			if !yield(metas[i:end]) {
				return
			}
		}
	}
}

func batchFailure(op string, failed []sqstypes.BatchResultErrorEntry) error {
	if len(failed) == 0 {
		return nil
	}
	f := failed[0]
	return fmt.Errorf("sqs %s failed for %d entries, first id=%s code=%s message=%s",
		op, len(failed), aws.ToString(f.Id), aws.ToString(f.Code), aws.ToString(f.Message))
}

type sqsMessage struct {
	src *SQS
	m   *sqstypes.Message
}

func (m *sqsMessage) Data() Envelope {
	name := aws.ToString(m.m.MessageId)
	if attr, ok := m.m.MessageAttributes[NameAttribute]; ok && aws.ToString(attr.StringValue) != "" {
		name = aws.ToString(attr.StringValue)
	}
	return Envelope{Name: name, Payload: []byte(aws.ToString(m.m.Body))}
}

func (m *sqsMessage) AckMeta() (AckMetadata, bool) {
	rh := aws.ToString(m.m.ReceiptHandle)
	if rh == "" {
		return AckMetadata{}, false
	}
	id := aws.ToString(m.m.MessageId)
	if id == "" {
		id = fmt.Sprintf("m%d", time.Now().UnixNano())
	}
	return AckMetadata{ID: id, Handle: rh}, true
}

// Fail makes the message visible again after FailVisibilityTimeoutSeconds.
// Without that setting it does nothing and the lease simply expires.
func (m *sqsMessage) Fail(ctx context.Context, _ error) error {
	if m.src.cfg.FailVisibilityTimeoutSeconds == nil {
		return nil
	}
	_, err := m.src.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(m.src.queueURL),
		ReceiptHandle:     m.m.ReceiptHandle,
		VisibilityTimeout: *m.src.cfg.FailVisibilityTimeoutSeconds,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
