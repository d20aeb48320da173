package build

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vk/dynmod/internal/platform"
)

// Stream identifies which output of the build process a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line of build output.
type Line struct {
	Stream Stream
	Text   string
}

// String formats the line as "[stream] text".
func (l Line) String() string {
	return "[" + l.Stream.String() + "] " + l.Text
}

// colored is String with the stream tag colored for terminals.
func (l Line) colored() string {
	tag := platform.Blue(l.Stream.String())
	if l.Stream == Stderr {
		tag = platform.Red(l.Stream.String())
	}
	return "[" + tag + "] " + l.Text
}

// Log is build output in arrival order across both streams.
type Log []Line

// String joins all lines, one per row.
func (l Log) String() string {
	var b strings.Builder
	for _, line := range l {
		b.WriteString(line.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// drain reads r line by line into out until EOF. On a read error the rest
// of r is discarded so the child never blocks on a full pipe.
func drain(stream Stream, r io.Reader, out chan<- Line) error {
	br := bufio.NewReader(r)
	for {
		text, err := br.ReadString('\n')
		if text != "" {
			out <- Line{Stream: stream, Text: strings.TrimRight(text, "\r\n")}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			_, _ = io.Copy(io.Discard, br)
			return fmt.Errorf("reading build %s: %w", stream, err)
		}
	}
}

// collect gathers lines until in is closed, echoing each to live when it
// is non-nil.
func collect(in <-chan Line, live io.Writer) Log {
	var log Log
	for line := range in {
		log = append(log, line)
		if live != nil {
			fmt.Fprintln(live, line.colored())
		}
	}
	return log
}
