package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	recv chan *sqs.ReceiveMessageOutput

	mu          sync.Mutex
	delFail     bool
	delErr      error
	delSizes    []int
	visCalls    int
	lastVisRH   string
	visBatchIDs []string
}

func newFakeSQS() *fakeSQS {
	return &fakeSQS{recv: make(chan *sqs.ReceiveMessageOutput, 4)}
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	select {
	case out := <-f.recv:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSQS) DeleteMessageBatch(_ context.Context, in *sqs.DeleteMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delSizes = append(f.delSizes, len(in.Entries))
	if f.delErr != nil {
		return nil, f.delErr
	}
	out := &sqs.DeleteMessageBatchOutput{}
	if f.delFail {
		out.Failed = []sqstypes.BatchResultErrorEntry{{Id: in.Entries[0].Id, Code: aws.String("InternalError"), Message: aws.String("boom")}}
	}
	return out, nil
}

func (f *fakeSQS) ChangeMessageVisibility(_ context.Context, in *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visCalls++
	f.lastVisRH = aws.ToString(in.ReceiptHandle)
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibilityBatch(_ context.Context, in *sqs.ChangeMessageVisibilityBatchInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityBatchOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range in.Entries {
		f.visBatchIDs = append(f.visBatchIDs, aws.ToString(e.Id))
	}
	return &sqs.ChangeMessageVisibilityBatchOutput{}, nil
}

func testConfig() SQSConfig {
	cfg := DefaultSQSConfig
	cfg.WaitTimeSeconds = 0
	cfg.BufSize = 4
	return cfg
}

func metas(n int) []AckMetadata {
	out := make([]AckMetadata, n)
	for i := range out {
		out[i] = AckMetadata{ID: fmt.Sprintf("id-%d", i), Handle: fmt.Sprintf("rh-%d", i)}
	}
	return out
}

func TestNewSQS_Validation(t *testing.T) {
	if _, err := NewSQS(context.Background(), nil, "q", testConfig()); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewSQS(context.Background(), newFakeSQS(), "", testConfig()); err == nil {
		t.Fatalf("expected error for empty queue url")
	}
	cfg := testConfig()
	cfg.MaxMessages = 11
	if _, err := NewSQS(context.Background(), newFakeSQS(), "q", cfg); err == nil {
		t.Fatalf("expected error for MaxMessages=11")
	}
}

func TestSQS_ReceiveNamesMessages(t *testing.T) {
	f := newFakeSQS()
	f.recv <- &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{
		{
			MessageId:     aws.String("m1"),
			ReceiptHandle: aws.String("rh1"),
			Body:          aws.String(`{"common":{"title":"A"}}`),
			MessageAttributes: map[string]sqstypes.MessageAttributeValue{
				NameAttribute: {DataType: aws.String("String"), StringValue: aws.String("a.mp3")},
			},
		},
		{MessageId: aws.String("m2"), ReceiptHandle: aws.String("rh2"), Body: aws.String(`{}`)},
	}}

	src, err := NewSQS(context.Background(), f, "q", testConfig())
	if err != nil {
		t.Fatalf("NewSQS: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	m1, err := src.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	m2, err := src.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if d := m1.Data(); d.Name != "a.mp3" || string(d.Payload) != `{"common":{"title":"A"}}` {
		t.Fatalf("m1 = %+v", d)
	}
	if d := m2.Data(); d.Name != "m2" {
		t.Fatalf("m2 name = %q", d.Name)
	}
}

func TestSQS_ReceiveAfterClose(t *testing.T) {
	src, err := NewSQS(context.Background(), newFakeSQS(), "q", testConfig())
	if err != nil {
		t.Fatalf("NewSQS: %v", err)
	}
	src.Close()
	src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := src.Receive(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestSQS_ReceiveContextCancel(t *testing.T) {
	src, _, err := newSQS(context.Background(), newFakeSQS(), "q", testConfig())
	if err != nil {
		t.Fatalf("newSQS: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Receive(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestSQS_AckBatchMetaChunksOfTen(t *testing.T) {
	f := newFakeSQS()
	src, _, _ := newSQS(context.Background(), f, "q", testConfig())

	if err := src.AckBatchMeta(context.Background(), metas(25)); err != nil {
		t.Fatalf("AckBatchMeta: %v", err)
	}
	if len(f.delSizes) != 3 || f.delSizes[0] != 10 || f.delSizes[2] != 5 {
		t.Fatalf("batch sizes = %v", f.delSizes)
	}
}

func TestSQS_AckBatchMetaFailedEntry(t *testing.T) {
	f := newFakeSQS()
	f.delFail = true
	src, _, _ := newSQS(context.Background(), f, "q", testConfig())
	if err := src.AckBatchMeta(context.Background(), metas(2)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSQS_AckBatchUsesReceiptHandles(t *testing.T) {
	f := newFakeSQS()
	src, _, _ := newSQS(context.Background(), f, "q", testConfig())

	msgs := []Message{
		&sqsMessage{src: src, m: &sqstypes.Message{MessageId: aws.String("a"), ReceiptHandle: aws.String("rh-a")}},
		nil,
		&sqsMessage{src: src, m: &sqstypes.Message{MessageId: aws.String("b"), ReceiptHandle: aws.String("rh-b")}},
	}
	if err := src.AckBatch(context.Background(), msgs); err != nil {
		t.Fatalf("AckBatch: %v", err)
	}
	if len(f.delSizes) != 1 || f.delSizes[0] != 2 {
		t.Fatalf("batch sizes = %v", f.delSizes)
	}

	if err := src.AckBatch(context.Background(), []Message{testMsg{name: "x"}}); err == nil {
		t.Fatalf("expected error for a message without a receipt handle")
	}
}

func TestSQS_ExtendVisibilityBatch(t *testing.T) {
	f := newFakeSQS()
	src, _, _ := newSQS(context.Background(), f, "q", testConfig())
	if err := src.ExtendVisibilityBatch(context.Background(), metas(12), 120); err != nil {
		t.Fatalf("ExtendVisibilityBatch: %v", err)
	}
	if len(f.visBatchIDs) != 12 || f.visBatchIDs[11] != "id-11" {
		t.Fatalf("ids = %v", f.visBatchIDs)
	}
}

func TestSQSMessage_Fail(t *testing.T) {
	f := newFakeSQS()
	src, _, _ := newSQS(context.Background(), f, "q", testConfig())
	m := &sqsMessage{src: src, m: &sqstypes.Message{MessageId: aws.String("id"), ReceiptHandle: aws.String("rh-7")}}

	if err := m.Fail(context.Background(), errors.New("bad json")); err != nil || f.visCalls != 0 {
		t.Fatalf("Fail without timeout: err=%v calls=%d", err, f.visCalls)
	}

	to := int32(5)
	src.cfg.FailVisibilityTimeoutSeconds = &to
	if err := m.Fail(context.Background(), errors.New("bad json")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if f.visCalls != 1 || f.lastVisRH != "rh-7" {
		t.Fatalf("calls=%d rh=%q", f.visCalls, f.lastVisRH)
	}
}
