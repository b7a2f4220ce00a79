package sink

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Publisher writes a dataset to every sink concurrently.
type Publisher struct {
	Sinks []Sink
}

// Publish writes data under each key to every sink. All the writes are
// attempted. The returned error wraps the first failure and lists every
// failed sink.
func (p Publisher) Publish(ctx context.Context, keys []string, data []byte) error {
	errs := make([]error, len(p.Sinks))

	var wg sync.WaitGroup
	for i, s := range p.Sinks {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for _, key := range keys {
				if err := instrumentWrite(s.Name(), func() error {
					return s.Write(ctx, key, data)
				}); err != nil {
					logs.Warn(errors.New("writing dataset failed").
						WithType(errors.Type(err)).
						WithTag("sink", s.Name()).
						WithTag("key", key).
						Wrap(err))
					errs[i] = err
					return
				}
			}

			logs.WithTag("sink", s.Name()).
				WithTag("keys", keys).
				WithTag("bytes", len(data)).
				Debug("dataset written")
		}()
	}
	wg.Wait()

	var failed []string
	var first error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		failed = append(failed, p.Sinks[i].Name())
	}

	if first != nil {
		return errors.New("publishing dataset failed").
			WithType(ErrTypePublishFailed).
			WithTag("failed_sinks", failed).
			Wrap(first)
	}
	return nil
}

func instrumentWrite(sink string, write func() error) error {
	start := time.Now()
	err := write()
	instrumentWriteLatency(sink, start)

	if err != nil {
		instrumentWriteError(sink, err)
		return err
	}
	instrumentWriteSuccess(sink)
	return nil
}
