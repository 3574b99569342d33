package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xRadioAc7iv/go-rmp/internal/guard"
	"github.com/0xRadioAc7iv/go-rmp/internal/hash"
	"github.com/0xRadioAc7iv/go-rmp/internal/protocol"
	"github.com/0xRadioAc7iv/go-rmp/internal/record"
	"github.com/0xRadioAc7iv/go-rmp/internal/store"
	"github.com/0xRadioAc7iv/go-rmp/internal/validate"
)

// Expected outcomes. They are answered with an ERROR response but are not
// faults of the server.
var (
	ErrRecordExists   = errors.New("record already exists")
	ErrRecordNotFound = errors.New("record does not exist")
)

// Response is the outcome of one dispatched request. Err keeps the cause of
// an ERROR response for logging; it is not sent on the wire.
type Response struct {
	Status protocol.Status
	Body   []byte
	Key    string // record key, when the body decoded
	Err    error
}

func okResponse(body []byte) Response {
	return Response{Status: protocol.StatusOK, Body: body}
}

func errorResponse(err error) Response {
	return Response{Status: protocol.StatusError, Body: []byte(err.Error()), Err: err}
}

// IsFault reports whether err is a server-side failure (storage or encoding)
// rather than an expected outcome such as a missing record or a rejected
// request.
func IsFault(err error) bool {
	var verr *validate.Error
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrRecordExists), errors.Is(err, ErrRecordNotFound), errors.As(err, &verr):
		return false
	}

	var perr *protocol.ProtocolError
	if errors.As(err, &perr) {
		return false
	}
	// a body that is not a JSON record is the client's mistake
	var decodeErr *decodeError
	return !errors.As(err, &decodeErr)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// Dispatcher maps requests onto bucket operations. Each request runs
// validate -> lock bucket -> load -> (mutate -> store) -> unlock.
type Dispatcher struct {
	store    *store.Store
	guard    *guard.Guard
	schema   validate.Schema
	lockWait func(time.Duration)
}

func NewDispatcher(st *store.Store, g *guard.Guard, schema validate.Schema) *Dispatcher {
	return &Dispatcher{store: st, guard: g, schema: schema}
}

// OnLockWait registers fn to observe how long each request waited for its
// bucket lock.
func (d *Dispatcher) OnLockWait(fn func(time.Duration)) {
	d.lockWait = fn
}

// Dispatch decodes the record carried by req and executes its command.
// It always yields exactly one response.
func (d *Dispatcher) Dispatch(req *protocol.Request) Response {
	if err := validate.Body(req.Command, req.Body); err != nil {
		return errorResponse(err)
	}

	rec, err := record.Decode(req.Body)
	if err != nil {
		return errorResponse(&decodeError{err: err})
	}

	resp := okResponse(nil)
	body, err := d.Execute(req.Command, rec)
	if err != nil {
		resp = errorResponse(err)
	} else {
		resp.Body = body
	}
	resp.Key = rec.Key

	return resp
}

// Execute validates rec and runs cmd against its bucket. The returned body
// is the stored record's JSON for READ and empty otherwise.
func (d *Dispatcher) Execute(cmd protocol.Command, rec record.Record) ([]byte, error) {
	if err := validate.Validate(cmd, rec, d.schema); err != nil {
		return nil, err
	}

	h := hash.Sum(rec.Key)

	var body []byte
	err := d.locked(h, func() error {
		var err error
		switch cmd {
		case protocol.Create:
			err = d.create(h, rec)
		case protocol.Read:
			body, err = d.read(h, rec.Key)
		case protocol.Update:
			err = d.update(h, rec)
		case protocol.Delete:
			err = d.delete(h, rec.Key)
		default:
			err = fmt.Errorf("unhandled command %s", cmd)
		}
		return err
	})

	return body, err
}

func (d *Dispatcher) locked(h uint32, fn func() error) error {
	start := time.Now()

	return d.guard.Do(h, func() error {
		if d.lockWait != nil {
			d.lockWait(time.Since(start))
		}
		return fn()
	})
}

func (d *Dispatcher) create(h uint32, rec record.Record) error {
	b, err := d.store.Load(h)
	if err != nil {
		return err
	}

	if b.Find(rec.Key) >= 0 {
		return fmt.Errorf("%w: %s", ErrRecordExists, rec.Key)
	}

	b = append(b, rec)
	return d.store.Save(h, b)
}

func (d *Dispatcher) read(h uint32, key string) ([]byte, error) {
	b, err := d.store.Load(h)
	if err != nil {
		return nil, err
	}

	i := b.Find(key)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	}

	return record.Encode(b[i])
}

func (d *Dispatcher) update(h uint32, rec record.Record) error {
	b, err := d.store.Load(h)
	if err != nil {
		return err
	}

	i := b.Find(rec.Key)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, rec.Key)
	}

	b[i].Merge(rec.Attributes)
	return d.store.Save(h, b)
}

func (d *Dispatcher) delete(h uint32, key string) error {
	b, err := d.store.Load(h)
	if err != nil {
		return err
	}

	i := b.Find(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	}

	return d.store.Save(h, b.Remove(i))
}
