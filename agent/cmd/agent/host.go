package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/armastats/relay/agent/internal/hostcall"
)

// maxLineSize bounds one host call read from the input stream.
const maxLineSize = 1 << 20

// serveHost answers host calls read line by line from in, writing one result
// line per call to out. It returns on EOF or when ctx is cancelled.
func serveHost(ctx context.Context, in io.Reader, out io.Writer, c hostcall.Caller, outputSize int) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Error("host: read failed", "err", err)
		}
	}()

	w := bufio.NewWriter(out)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			res := hostcall.Invoke(c, strings.TrimRight(line, "\r"), outputSize)
			w.WriteString(res) //nolint:errcheck
			w.WriteByte('\n')  //nolint:errcheck
			if err := w.Flush(); err != nil {
				slog.Error("host: write failed", "err", err)
				return
			}
		}
	}
}
