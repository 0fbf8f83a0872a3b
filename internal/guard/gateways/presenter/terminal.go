package presenter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/manifoldco/promptui"

	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

// SelectFunc shows p and returns the chosen action index. It must return
// promptly once ctx is cancelled.
type SelectFunc func(ctx context.Context, p domain.Prompt) (int, error)

// Terminal is a Presenter that asks on the local terminal, one prompt at a
// time in arrival order. Prompts cleared before their turn are skipped and
// a cleared prompt on screen is taken down.
type Terminal struct {
	logger log.Logger
	run    SelectFunc

	mu      sync.Mutex
	sink    Sink
	queue   chan domain.Prompt
	queued  map[string]bool // token -> cleared while waiting
	current *onScreen
	closed  bool
	done    chan struct{}
}

// onScreen is the prompt the worker is waiting on.
type onScreen struct {
	token  string
	cancel context.CancelFunc
}

// TerminalOptions configures a Terminal presenter.
type TerminalOptions struct {
	Logger    log.Logger
	Stdin     io.ReadCloser
	Stdout    io.WriteCloser
	QueueSize int
	// Select replaces the interactive selector, for tests.
	Select SelectFunc
}

// NewTerminal creates a Terminal presenter and starts its worker.
func NewTerminal(opts TerminalOptions) *Terminal {
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.Select == nil {
		opts.Select = promptuiSelect(opts.Stdin, opts.Stdout)
	}
	t := &Terminal{
		logger:  opts.Logger,
		run:     opts.Select,
		queue:   make(chan domain.Prompt, opts.QueueSize),
		queued:  make(map[string]bool),
		done:    make(chan struct{}),
	}
	go t.work()
	return t
}

func promptuiSelect(stdin io.ReadCloser, stdout io.WriteCloser) SelectFunc {
	if stdin == nil {
		stdin = os.Stdin
	}
	in := newStdinPump(stdin)
	return func(ctx context.Context, p domain.Prompt) (int, error) {
		sel := promptui.Select{
			Label:        fmt.Sprintf("%s: %s", p.Title, p.Message),
			Items:        p.Actions[:],
			Size:         len(p.Actions),
			HideHelp:     true,
			HideSelected: false,
			Stdin:        in.reader(ctx),
			Stdout:       stdout,
		}
		idx, _, err := sel.Run()
		return idx, err
	}
}

// Bind sets the Sink that receives answers.
func (t *Terminal) Bind(sink Sink) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
}

// Show queues p. It fails with ErrNoPresenter when the queue is full or the
// presenter is closed.
func (t *Terminal) Show(ctx context.Context, p domain.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrNoPresenter
	}
	select {
	case t.queue <- p:
		t.queued[p.Token] = false
		return nil
	default:
		return fmt.Errorf("%w: terminal queue full", ErrNoPresenter)
	}
}

// Clear marks token as settled so it is not shown if still queued. If it is
// the prompt on screen, the selector is cancelled and the worker moves on.
func (t *Terminal) Clear(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.token == token {
		t.current.cancel()
		return
	}
	if _, ok := t.queued[token]; ok {
		t.queued[token] = true
	}
}

// Close takes down the prompt on screen, if any, and stops the worker.
// Queued prompts are dropped; their tokens settle through the broker.
func (t *Terminal) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
		if t.current != nil {
			t.current.cancel()
		}
	}
	t.mu.Unlock()
	<-t.done
}

func (t *Terminal) work() {
	defer close(t.done)
	for p := range t.queue {
		ctx, cancel, ok := t.present(p.Token)
		if !ok {
			continue
		}
		idx, err := t.run(ctx, p)
		takenDown := ctx.Err() != nil
		cancel()

		t.mu.Lock()
		t.current = nil
		sink := t.sink
		t.mu.Unlock()

		if takenDown && err != nil {
			t.logger.Debug(map[string]any{"token": p.Token}, "Prompt taken down")
			continue
		}
		if sink == nil {
			t.logger.Warn(map[string]any{"token": p.Token}, "No sink bound, dropping answer")
			continue
		}

		switch {
		case err == nil:
			sink.HandleAction(p.Token, idx)
		case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF), errors.Is(err, promptui.ErrAbort):
			sink.HandleDismissal(p.Token, true)
		default:
			t.logger.Error(map[string]any{"token": p.Token, "error": err.Error()}, "Terminal prompt failed")
		}
	}
}

// present dequeues token and records it as the prompt on screen. It
// reports false when the prompt was cleared while queued or the presenter
// is closed.
func (t *Terminal) present(token string) (context.Context, context.CancelFunc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cleared := t.queued[token]
	delete(t.queued, token)
	if cleared || t.closed {
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.current = &onScreen{token: token, cancel: cancel}
	return ctx, cancel, true
}

// stdinPump owns the single reader of the real terminal input and hands its
// bytes to one prompt at a time. Bytes read after a prompt was taken down
// are kept for the next one.
type stdinPump struct {
	src  io.Reader
	once sync.Once

	chunks chan []byte

	mu   sync.Mutex
	rest []byte
}

func newStdinPump(src io.Reader) *stdinPump {
	return &stdinPump{src: src, chunks: make(chan []byte)}
}

func (s *stdinPump) start() {
	go func() {
		defer close(s.chunks)
		buf := make([]byte, 256)
		for {
			n, err := s.src.Read(buf)
			if n > 0 {
				s.chunks <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()
}

// reader returns an input that reports EOF once ctx is cancelled.
func (s *stdinPump) reader(ctx context.Context) io.ReadCloser {
	s.once.Do(s.start)
	return &promptInput{pump: s, ctx: ctx}
}

func (s *stdinPump) unread(b []byte) {
	s.mu.Lock()
	s.rest = append(b, s.rest...)
	s.mu.Unlock()
}

type promptInput struct {
	pump *stdinPump
	ctx  context.Context
}

func (in *promptInput) Read(p []byte) (int, error) {
	if in.ctx.Err() != nil {
		return 0, io.EOF
	}
	s := in.pump
	s.mu.Lock()
	if len(s.rest) > 0 {
		n := copy(p, s.rest)
		s.rest = s.rest[n:]
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	select {
	case <-in.ctx.Done():
		return 0, io.EOF
	case b, ok := <-s.chunks:
		if !ok {
			return 0, io.EOF
		}
		if in.ctx.Err() != nil {
			s.unread(b)
			return 0, io.EOF
		}
		n := copy(p, b)
		if n < len(b) {
			s.unread(b[n:])
		}
		return n, nil
	}
}

// Close leaves the terminal open for the next prompt.
func (in *promptInput) Close() error { return nil }
