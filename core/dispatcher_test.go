package core

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xRadioAc7iv/go-rmp/internal/guard"
	"github.com/0xRadioAc7iv/go-rmp/internal/hash"
	"github.com/0xRadioAc7iv/go-rmp/internal/protocol"
	"github.com/0xRadioAc7iv/go-rmp/internal/record"
	"github.com/0xRadioAc7iv/go-rmp/internal/store"
	"github.com/0xRadioAc7iv/go-rmp/internal/validate"
)

func newDispatcher(t *testing.T) (*Dispatcher, *store.Store) {
	t.Helper()

	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	return NewDispatcher(st, guard.New(), validate.DefaultSchema()), st
}

func request(t *testing.T, cmd protocol.Command, key string, attrs record.Attributes) *protocol.Request {
	t.Helper()

	body, err := record.Encode(record.New(key, attrs))
	require.NoError(t, err)
	return &protocol.Request{Command: cmd, Body: body}
}

var john = record.Attributes{"name": "John", "phone": "0000000000"}

func TestDispatchScenario(t *testing.T) {
	d, _ := newDispatcher(t)
	key := "a@example.com"

	resp := d.Dispatch(request(t, protocol.Create, key, john))
	require.Equal(t, protocol.StatusOK, resp.Status, string(resp.Body))
	assert.Empty(t, resp.Body)

	resp = d.Dispatch(request(t, protocol.Read, key, nil))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, `{"key":"a@example.com","attributes":{"name":"John","phone":"0000000000"}}`, string(resp.Body))

	resp = d.Dispatch(request(t, protocol.Update, key, record.Attributes{"phone": "1111111111"}))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Empty(t, resp.Body)

	resp = d.Dispatch(request(t, protocol.Read, key, nil))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, `{"key":"a@example.com","attributes":{"name":"John","phone":"1111111111"}}`, string(resp.Body))

	resp = d.Dispatch(request(t, protocol.Delete, key, nil))
	require.Equal(t, protocol.StatusOK, resp.Status)

	resp = d.Dispatch(request(t, protocol.Read, key, nil))
	require.Equal(t, protocol.StatusError, resp.Status)
	assert.Contains(t, string(resp.Body), "does not exist")
	assert.ErrorIs(t, resp.Err, ErrRecordNotFound)
}

func TestDispatchCreateTwice(t *testing.T) {
	d, _ := newDispatcher(t)

	resp := d.Dispatch(request(t, protocol.Create, "k", john))
	require.Equal(t, protocol.StatusOK, resp.Status)

	resp = d.Dispatch(request(t, protocol.Create, "k", john))
	require.Equal(t, protocol.StatusError, resp.Status)
	assert.Contains(t, string(resp.Body), "already exists")
	assert.ErrorIs(t, resp.Err, ErrRecordExists)
	assert.False(t, IsFault(resp.Err))
}

func TestDispatchMissingRecord(t *testing.T) {
	d, _ := newDispatcher(t)

	for _, req := range []*protocol.Request{
		request(t, protocol.Read, "ghost", nil),
		request(t, protocol.Update, "ghost", record.Attributes{"phone": "1"}),
		request(t, protocol.Delete, "ghost", nil),
	} {
		resp := d.Dispatch(req)
		assert.Equal(t, protocol.StatusError, resp.Status, req.Command.String())
		assert.Contains(t, string(resp.Body), "does not exist", req.Command.String())
	}
}

func TestDispatchDeleteTwice(t *testing.T) {
	d, st := newDispatcher(t)

	require.Equal(t, protocol.StatusOK, d.Dispatch(request(t, protocol.Create, "k", john)).Status)
	require.Equal(t, protocol.StatusOK, d.Dispatch(request(t, protocol.Delete, "k", nil)).Status)

	resp := d.Dispatch(request(t, protocol.Delete, "k", nil))
	assert.Equal(t, protocol.StatusError, resp.Status)

	_, err := os.Stat(st.Path(hash.Sum("k")))
	assert.True(t, errors.Is(err, os.ErrNotExist), "empty bucket file should be removed")
}

func TestDispatchValidationNeverTouchesStorage(t *testing.T) {
	d, st := newDispatcher(t)

	resp := d.Dispatch(request(t, protocol.Create, "k", record.Attributes{"name": "John"}))
	require.Equal(t, protocol.StatusError, resp.Status)
	assert.Contains(t, string(resp.Body), "missing required attributes: phone")

	var verr *validate.Error
	assert.True(t, errors.As(resp.Err, &verr))

	entries, err := os.ReadDir(st.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispatchEmptyUpdateIsInvalid(t *testing.T) {
	d, _ := newDispatcher(t)
	require.Equal(t, protocol.StatusOK, d.Dispatch(request(t, protocol.Create, "k", john)).Status)

	resp := d.Dispatch(request(t, protocol.Update, "k", record.Attributes{}))
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Contains(t, string(resp.Body), "at least one attribute")
}

func TestDispatchMalformedBody(t *testing.T) {
	d, _ := newDispatcher(t)

	resp := d.Dispatch(&protocol.Request{Command: protocol.Create, Body: []byte(`{"key":`)})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Contains(t, string(resp.Body), "malformed record body")
	assert.False(t, IsFault(resp.Err))
}

func TestDispatchUnknownCommand(t *testing.T) {
	d, _ := newDispatcher(t)

	resp := d.Dispatch(&protocol.Request{Command: protocol.Command(7), Body: []byte(`{"key":"k"}`)})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Contains(t, string(resp.Body), "unknown command code 7")
}

func TestDispatchCorruptBucketReleasesLock(t *testing.T) {
	d, st := newDispatcher(t)
	h := hash.Sum("k")

	require.NoError(t, os.WriteFile(st.Path(h), []byte("not json"), 0644))

	resp := d.Dispatch(request(t, protocol.Read, "k", nil))
	require.Equal(t, protocol.StatusError, resp.Status)
	assert.True(t, IsFault(resp.Err))

	var ioErr *store.IOError
	assert.True(t, errors.As(resp.Err, &ioErr))
	assert.Equal(t, 0, d.guard.Len(), "lock must be released after a storage error")

	// the corrupt file is not mistaken for an empty bucket
	resp = d.Dispatch(request(t, protocol.Create, "k", john))
	assert.Equal(t, protocol.StatusError, resp.Status)
}

func TestDispatchCollidingKeys(t *testing.T) {
	d, st := newDispatcher(t)
	a, b := "Ez@example.com", "FY@example.com"
	require.Equal(t, hash.Sum(a), hash.Sum(b))

	require.Equal(t, protocol.StatusOK, d.Dispatch(request(t, protocol.Create, a, record.Attributes{"name": "A", "phone": "1"})).Status)
	require.Equal(t, protocol.StatusOK, d.Dispatch(request(t, protocol.Create, b, record.Attributes{"name": "B", "phone": "2"})).Status)

	bucket, err := st.Load(hash.Sum(a))
	require.NoError(t, err)
	assert.Len(t, bucket, 2)

	require.Equal(t, protocol.StatusOK, d.Dispatch(request(t, protocol.Delete, a, nil)).Status)

	resp := d.Dispatch(request(t, protocol.Read, b, nil))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.JSONEq(t, `{"key":"FY@example.com","attributes":{"name":"B","phone":"2"}}`, string(resp.Body))

	resp = d.Dispatch(request(t, protocol.Read, a, nil))
	assert.Equal(t, protocol.StatusError, resp.Status)
}

func TestDispatchConcurrentCreateSameKey(t *testing.T) {
	d, st := newDispatcher(t)

	const n = 32
	req := request(t, protocol.Create, "race@example.com", john)
	var wg sync.WaitGroup
	results := make(chan Response, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- d.Dispatch(req)
		}()
	}
	wg.Wait()
	close(results)

	var ok, exists int
	for resp := range results {
		switch {
		case resp.Status == protocol.StatusOK:
			ok++
		case errors.Is(resp.Err, ErrRecordExists):
			exists++
		default:
			t.Errorf("unexpected response: %s", resp.Body)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, exists)

	bucket, err := st.Load(hash.Sum("race@example.com"))
	require.NoError(t, err)
	assert.Len(t, bucket, 1)
}

func TestDispatchObservesLockWait(t *testing.T) {
	d, _ := newDispatcher(t)

	var calls int
	d.OnLockWait(func(_ time.Duration) { calls++ })

	d.Dispatch(request(t, protocol.Create, "k", john))
	d.Dispatch(request(t, protocol.Read, "k", nil))
	d.Dispatch(request(t, protocol.Read, "", nil)) // rejected before locking

	assert.Equal(t, 2, calls)
}

func TestDispatchRejectsInvalidUTF8(t *testing.T) {
	d, st := newDispatcher(t)

	for _, key := range []string{"a\xffb", "a\xfeb"} {
		body := []byte("{\"key\":\"" + key + "\",\"attributes\":{\"name\":\"J\",\"phone\":\"1\"}}")
		resp := d.Dispatch(&protocol.Request{Command: protocol.Create, Body: body})

		require.Equal(t, protocol.StatusError, resp.Status)
		assert.Contains(t, string(resp.Body), "valid UTF-8")
		assert.False(t, IsFault(resp.Err))
	}

	// neither request may have reached storage under the replacement key
	bucket, err := st.Load(hash.Sum("a\uFFFDb"))
	require.NoError(t, err)
	assert.Empty(t, bucket)
}
