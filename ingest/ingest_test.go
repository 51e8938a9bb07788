package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/docmesh/agent"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/ledger"
	"github.com/hupe1980/docmesh/model"
	"github.com/hupe1980/docmesh/natsbus"
	"github.com/hupe1980/docmesh/objectstore"
	"github.com/hupe1980/docmesh/tool"
	"github.com/hupe1980/docmesh/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "langchain-bucket"

type fixture struct {
	objects  *objectstore.Memory
	vectors  *vectorstore.Memory
	ledger   *ledger.Ledger
	model    *model.ScriptedModel
	pipeline *Pipeline
}

func newFixture(t *testing.T, withLedger bool) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		objects: objectstore.NewMemory(),
		vectors: vectorstore.NewMemory(),
		model:   model.NewScriptedModel("summarizer"),
	}
	require.NoError(t, f.objects.EnsureBucket(ctx, testBucket))
	f.model.Fallback = func(req model.Request) model.Reply { return model.TextReply("a summary") }

	inv := tool.NewInvoker()
	require.NoError(t, inv.Register(
		tool.NewObjectStoreTool(f.objects, func(o *tool.ObjectStoreToolOptions) { o.DefaultBucket = testBucket }),
		tool.NewVectorStoreTool(f.vectors, func(o *tool.VectorStoreToolOptions) { o.DefaultClass = vectorstore.DefaultClass }),
	))

	if withLedger {
		l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = l.Close() })
		f.ledger = l
	}

	f.pipeline = NewPipeline(inv, func(o *Options) {
		o.Bucket = testBucket
		o.Summarizer = NewModelSummarizer(f.model, "")
		o.Tags = []string{"minio"}
		if f.ledger != nil {
			o.Ledger = f.ledger
		}
	})

	return f
}

func (f *fixture) put(t *testing.T, key, content string) {
	t.Helper()
	_, err := f.objects.Put(context.Background(), testBucket, key, []byte(content), "")
	require.NoError(t, err)
}

func (f *fixture) documents(t *testing.T) []vectorstore.Document {
	t.Helper()
	records, err := f.vectors.Get(context.Background(), vectorstore.DefaultClass, core.Query{})
	require.NoError(t, err)
	docs := make([]vectorstore.Document, len(records))
	for i, r := range records {
		docs[i] = vectorstore.DocumentFromRecord(r)
	}
	return docs
}

func TestPipeline_IndexBucket(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.put(t, "b.md", "# Beta")
	f.put(t, "a.md", "# Alpha")

	report, err := f.pipeline.IndexBucket(ctx)
	require.NoError(t, err)

	assert.Equal(t, testBucket, report.Bucket)
	require.Len(t, report.Indexed, 2)
	assert.Equal(t, "a.md", report.Indexed[0].Key)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)

	docs := f.documents(t)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].Name)
	assert.Equal(t, testBucket+"/a.md", docs[0].Source)
	assert.Equal(t, "# Alpha", docs[0].Content)
	assert.Equal(t, "a summary", docs[0].Summary)
	assert.Equal(t, []string{"minio"}, docs[0].Tags)
	assert.Contains(t, docs[0].Metadata, `"key":"a.md"`)

	entry, err := f.ledger.Object(ctx, testBucket, "a.md")
	require.NoError(t, err)
	assert.Equal(t, report.Indexed[0].DocumentID, entry.DocumentID)

	// Unchanged objects are skipped.
	report, err = f.pipeline.IndexBucket(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Indexed)
	assert.Equal(t, []string{"a.md", "b.md"}, report.Skipped)
	assert.Len(t, f.documents(t), 2)

	// A changed object updates its record in place.
	f.put(t, "a.md", "# Alpha v2")
	report, err = f.pipeline.IndexBucket(ctx)
	require.NoError(t, err)
	require.Len(t, report.Indexed, 1)
	assert.Equal(t, entry.DocumentID, report.Indexed[0].DocumentID)

	docs = f.documents(t)
	require.Len(t, docs, 2)
	assert.Equal(t, "# Alpha v2", docs[0].Content)
}

func TestPipeline_SummarizerFailureIsPerObject(t *testing.T) {
	f := newFixture(t, false)
	f.put(t, "a.md", "alpha")
	f.put(t, "b.md", "beta")

	f.model.Enqueue(model.ErrorReply(errors.New("quota exceeded")))

	report, err := f.pipeline.IndexBucket(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "a.md", report.Failed[0].Key)
	assert.Contains(t, report.Failed[0].Error, "quota exceeded")
	require.Len(t, report.Indexed, 1)
	assert.Equal(t, "b.md", report.Indexed[0].Key)
}

func TestPipeline_BinaryObjectsAreNotSummarized(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.objects.Put(context.Background(), testBucket, "logo.png", []byte{0x89, 0x50, 0xff, 0xfe}, "image/png")
	require.NoError(t, err)

	report, err := f.pipeline.IndexBucket(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Indexed, 1)
	assert.Empty(t, f.model.Requests())

	docs := f.documents(t)
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].Summary)
	assert.Contains(t, docs[0].Metadata, `"encoding":"base64"`)
}

func TestPipeline_MissingBucket(t *testing.T) {
	f := newFixture(t, false)
	f.pipeline.opts.Bucket = "nope"

	_, err := f.pipeline.IndexBucket(context.Background())
	assert.Error(t, err)
}

func TestPipeline_HandleNotification(t *testing.T) {
	for _, withLedger := range []bool{true, false} {
		name := "without ledger"
		if withLedger {
			name = "with ledger"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, withLedger)
			ctx := context.Background()
			f.put(t, "notes.md", "meeting notes")

			action, err := f.pipeline.HandleNotification(ctx, Notification{
				EventName: "s3:ObjectCreated:Put",
				Bucket:    testBucket,
				Key:       "notes.md",
			})
			require.NoError(t, err)
			assert.Equal(t, "indexed", action)
			assert.Len(t, f.documents(t), 1)

			action, err = f.pipeline.HandleNotification(ctx, Notification{EventName: "s3:ObjectAccessed:Get", Bucket: testBucket, Key: "notes.md"})
			require.NoError(t, err)
			assert.Equal(t, "ignored", action)

			action, err = f.pipeline.HandleNotification(ctx, Notification{
				EventName: "s3:ObjectRemoved:Delete",
				Bucket:    testBucket,
				Key:       "notes.md",
			})
			require.NoError(t, err)
			assert.Equal(t, "removed", action)
			assert.Empty(t, f.documents(t))
		})
	}
}

func TestPipeline_CreatedEventForMissingObject(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.pipeline.HandleNotification(context.Background(), Notification{
		EventName: "s3:ObjectCreated:Put",
		Bucket:    testBucket,
		Key:       "gone.md",
	})
	require.Error(t, err)
	assert.Equal(t, "Object gone.md not found in bucket "+testBucket, err.Error())
}

func TestParseNotifications(t *testing.T) {
	t.Run("simple shape", func(t *testing.T) {
		ns, err := ParseNotifications([]byte(`{"eventName":"s3:ObjectCreated:Put","bucket":{"name":"docs"},"object":{"key":"a.md","size":12,"contentType":"text/markdown"}}`))
		require.NoError(t, err)
		require.Len(t, ns, 1)
		assert.Equal(t, Notification{EventName: "s3:ObjectCreated:Put", Bucket: "docs", Key: "a.md", Size: 12, ContentType: "text/markdown"}, ns[0])
		assert.True(t, ns[0].IsCreated())
		assert.False(t, ns[0].IsRemoved())
	})

	t.Run("records shape", func(t *testing.T) {
		payload := `{"EventName":"s3:ObjectRemoved:Delete","Key":"docs/my%20file.md","Records":[
			{"eventName":"s3:ObjectRemoved:Delete","s3":{"bucket":{"name":"docs"},"object":{"key":"my%20file.md","eTag":"abc"}}}
		]}`
		ns, err := ParseNotifications([]byte(payload))
		require.NoError(t, err)
		require.Len(t, ns, 1)
		assert.Equal(t, "my file.md", ns[0].Key)
		assert.Equal(t, "abc", ns[0].ETag)
		assert.True(t, ns[0].IsRemoved())
	})

	t.Run("malformed", func(t *testing.T) {
		for _, payload := range []string{`not json`, `{}`, `{"eventName":"s3:ObjectCreated:Put"}`} {
			_, err := ParseNotifications([]byte(payload))
			assert.ErrorIs(t, err, ErrMalformedNotification, payload)
		}
	})
}

type fakeRunner struct {
	result agent.Result
	err    error
	tasks  []string
}

func (r *fakeRunner) Run(_ context.Context, task string) (agent.Result, error) {
	r.tasks = append(r.tasks, task)
	return r.result, r.err
}

func TestTeamSummarizer(t *testing.T) {
	messages := []core.Message{
		core.NewMessage(core.UserAuthor, "task"),
		core.NewMessage("communication", "  the summary  "),
	}

	t.Run("success", func(t *testing.T) {
		r := &fakeRunner{result: agent.Result{Outcome: core.OutcomeSuccess, Messages: messages}}
		s, err := NewTeamSummarizer(r, "").Summarize(context.Background(), "a.md", "body text")
		require.NoError(t, err)
		assert.Equal(t, "the summary", s)
		require.Len(t, r.tasks, 1)
		assert.Contains(t, r.tasks[0], `"a.md"`)
		assert.Contains(t, r.tasks[0], "body text")
	})

	t.Run("inconclusive keeps partial answer", func(t *testing.T) {
		r := &fakeRunner{result: agent.Result{Outcome: core.OutcomeInconclusive, Messages: messages}}
		s, err := NewTeamSummarizer(r, "").Summarize(context.Background(), "a.md", "body")
		require.NoError(t, err)
		assert.Equal(t, "the summary", s)
	})

	t.Run("failure", func(t *testing.T) {
		cv := core.NewContractViolation("invalid_route", "editor", nil)
		r := &fakeRunner{result: agent.Result{Outcome: core.OutcomeFailure, Messages: messages, Err: cv}}
		_, err := NewTeamSummarizer(r, "").Summarize(context.Background(), "a.md", "body")
		assert.ErrorIs(t, err, core.ErrContractViolation)
	})
}

func TestSubscribe(t *testing.T) {
	bus, err := natsbus.New()
	require.NoError(t, err)
	defer bus.Close()

	client, err := natsbus.NewClient(bus)
	require.NoError(t, err)
	defer client.Close()

	f := newFixture(t, true)
	f.put(t, "event.md", "from nats")

	sub, err := Subscribe(client, "", f.pipeline, time.Second, nil)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	payload := `{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"` + testBucket + `"},"object":{"key":"event.md"}}}]}`
	require.NoError(t, client.Publish(natsbus.TopicBucketEvents, []byte(payload)))
	require.NoError(t, client.Flush())

	assert.Eventually(t, func() bool {
		_, err := f.ledger.Object(context.Background(), testBucket, "event.md")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}
