package logsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is how often a followed file is checked for new data
const DefaultPollInterval = 250 * time.Millisecond

// ReaderSource reads newline-delimited log lines from a file or stream. In
// follow mode it keeps polling at EOF, like tail -f, so it can read the log
// ACT is still writing.
type ReaderSource struct {
	name   string
	r      io.Reader
	follow bool
	poll   time.Duration
	clock  clockwork.Clock
}

type ReaderOption func(*ReaderSource)

// WithFollow keeps reading past EOF
func WithFollow(follow bool) ReaderOption {
	return func(s *ReaderSource) { s.follow = follow }
}

func WithPollInterval(d time.Duration) ReaderOption {
	return func(s *ReaderSource) {
		if d > 0 {
			s.poll = d
		}
	}
}

func WithReaderClock(clock clockwork.Clock) ReaderOption {
	return func(s *ReaderSource) { s.clock = clock }
}

func NewReaderSource(name string, r io.Reader, opts ...ReaderOption) *ReaderSource {
	s := &ReaderSource{
		name:  name,
		r:     r,
		poll:  DefaultPollInterval,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenFile opens path for reading. In follow mode reading starts at the end
// of the file, so only lines written from now on are replayed.
func OpenFile(path string, opts ...ReaderOption) (*ReaderSource, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	s := NewReaderSource(path, f, opts...)
	if s.follow {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("seek log file: %w", err)
		}
	}
	return s, f, nil
}

// Run submits every non-blank line until EOF (or, in follow mode, until ctx
// is cancelled). A read from a blocking stream such as stdin is not
// interrupted by ctx; Run returns once the read completes.
func (s *ReaderSource) Run(ctx context.Context, sub Submitter) error {
	log.Info().Str("source", s.name).Bool("follow", s.follow).Msg("reading combat log")

	br := bufio.NewReaderSize(s.r, 64*1024)
	var partial strings.Builder
	lines := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		chunk, err := br.ReadString('\n')
		partial.WriteString(chunk)

		if err == nil {
			line := strings.TrimRight(partial.String(), "\r\n")
			partial.Reset()
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := sub.Submit(ctx, line); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("submit line from %s: %w", s.name, err)
			}
			lines++
			continue
		}

		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("read %s: %w", s.name, err)
		}

		if !s.follow {
			// A final line without a newline still counts
			if line := strings.TrimSpace(partial.String()); line != "" {
				if err := sub.Submit(ctx, line); err != nil && ctx.Err() == nil {
					return fmt.Errorf("submit line from %s: %w", s.name, err)
				}
				lines++
			}
			log.Info().Str("source", s.name).Int("lines", lines).Msg("reached end of combat log")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.poll):
		}
	}
}
