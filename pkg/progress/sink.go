package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	pb "github.com/schollz/progressbar/v3"
)

type pbVal struct {
	w io.Writer
}

type pbKey struct{}

// Open attaches a terminal writer to ctx. Sinks created with FromContext
// render bars to it.
func Open(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, pbKey{}, pbVal{w})
}

// FromContext returns a terminal sink if Open was used on ctx, otherwise a
// sink that discards events.
func FromContext(ctx context.Context) Sink {
	h := ctx.Value(pbKey{})
	if h == nil {
		return nopSink{}
	}

	return &terminal{w: h.(pbVal).w}
}

// terminal renders a bar in permille so fractional progress still moves.
type terminal struct {
	w io.Writer

	mu  sync.Mutex
	bar *pb.ProgressBar
}

func (t *terminal) Update(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bar == nil {
		t.bar = pb.NewOptions64(
			1000,
			pb.OptionSetDescription(ev.Title),
			pb.OptionSetWriter(t.w),
			pb.OptionSetWidth(20),
			pb.OptionThrottle(65*time.Millisecond),
			pb.OptionSetTheme(
				pb.Theme{Saucer: "=", SaucerPadding: " ", BarStart: "[", BarEnd: "]"},
			),
			pb.OptionOnCompletion(func() {
				fmt.Fprint(t.w, "\n")
			}),
			pb.OptionSpinnerType(14),
			pb.OptionFullWidth(),
		)
		t.bar.RenderBlank()
	}

	if ev.Message != "" {
		t.bar.Describe(ev.Title + ": " + ev.Message)
	}

	t.bar.Set64(int64(ev.Percent * 10))

	if ev.Done {
		t.bar.Finish()
	}
}

// Log writes message changes to a logger at debug level.
func Log(L hclog.Logger) Sink {
	return &logSink{L: L}
}

type logSink struct {
	L hclog.Logger

	mu   sync.Mutex
	last string
}

func (l *logSink) Update(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.Message == l.last && !ev.Done {
		return
	}

	l.last = ev.Message

	l.L.Debug("progress", "id", ev.ID, "percent", fmt.Sprintf("%.1f", ev.Percent), "status", ev.Message)
}

// Multi fans events out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ev Event) {
		for _, s := range sinks {
			s.Update(ev)
		}
	})
}
