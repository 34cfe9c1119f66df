package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/youssefsiam38/tagstream/content"
	"github.com/youssefsiam38/tagstream/parser"
	"github.com/youssefsiam38/tagstream/render"
)

var (
	parseChunk  int
	parseRescan bool
	parseJSON   bool
	parseFollow bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Parse a transcript and print its blocks as they close",
	Long: `Parse feeds a transcript to the streaming parser in chunks and prints
each block as soon as it is sealed. With --follow the file is watched and
new bytes are parsed as they are appended, until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if parseChunk <= 0 {
			return fmt.Errorf("--chunk must be positive, got %d", parseChunk)
		}
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		if parseFollow && path == "-" {
			return errors.New("--follow needs a file")
		}

		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		strategy := parser.StrategyResumable
		if parseRescan {
			strategy = parser.StrategyRescan
		}
		em := &emitter{
			p:    parser.New(reg, parser.WithStrategy(strategy)),
			sink: newSink(cmd.OutOrStdout(), parseJSON),
		}
		logger := newLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		switch {
		case parseFollow:
			err = follow(ctx, path, parseChunk, em, logger)
		case path == "-":
			err = feed(os.Stdin, parseChunk, em)
		default:
			var f *os.File
			if f, err = os.Open(path); err != nil {
				return err
			}
			defer f.Close()
			err = feed(f, parseChunk, em)
		}
		if err != nil {
			return err
		}

		if err := em.finish(); err != nil {
			return err
		}
		logger.Debug("parsed", "bytes", em.p.Consumed(), "blocks", em.emitted, "strategy", strategy)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().IntVar(&parseChunk, "chunk", 64, "Bytes fed to the parser per write")
	parseCmd.Flags().BoolVar(&parseRescan, "rescan", false, "Re-scan the whole message on every write")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print one JSON object per block")
	parseCmd.Flags().BoolVarP(&parseFollow, "follow", "f", false, "Keep parsing as the file grows")
}

// blockSink receives blocks in order, each exactly once.
type blockSink func(content.Block) error

func newSink(w io.Writer, asJSON bool) blockSink {
	if asJSON {
		return func(b content.Block) error {
			data, err := content.MarshalBlocks([]content.Block{b})
			if err != nil {
				return err
			}
			// a one-element array; print the element
			data = bytes.TrimSuffix(bytes.TrimPrefix(data, []byte("[")), []byte("]"))
			_, err = fmt.Fprintf(w, "%s\n", data)
			return err
		}
	}
	return func(b content.Block) error {
		text := render.Plain([]content.Block{b})
		if text == "" {
			return nil
		}
		_, err := fmt.Fprintf(w, "%s\n\n", text)
		return err
	}
}

// emitter forwards newly sealed blocks from a parser to a sink.
type emitter struct {
	p       *parser.Parser
	sink    blockSink
	emitted int
}

func (e *emitter) write(chunk []byte) error {
	if _, err := e.p.Write(chunk); err != nil {
		return err
	}
	for _, b := range e.p.SealedSince(e.emitted) {
		if err := e.sink(b); err != nil {
			return err
		}
	}
	e.emitted = e.p.NumSealed()
	return nil
}

// restart drops everything parsed so far; the next write starts a new message.
func (e *emitter) restart() {
	e.p.Reset()
	e.emitted = 0
}

// finish finalizes the parser and emits what is left, including the open block.
func (e *emitter) finish() error {
	blocks := e.p.Finalize()
	for _, b := range blocks[min(e.emitted, len(blocks)):] {
		if err := e.sink(b); err != nil {
			return err
		}
	}
	e.emitted = len(blocks)
	return nil
}

// feed writes r to the emitter chunk bytes at a time until EOF.
func feed(r io.Reader, chunk int, em *emitter) error {
	buf := make([]byte, chunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := em.write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// follow parses path and then every byte appended to it until ctx is done or
// the file is removed. A file that shrinks is treated as a new message.
func follow(ctx context.Context, path string, chunk int, em *emitter, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	drain := func() error {
		info, err := f.Stat()
		if err != nil {
			return err
		}
		offset, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if info.Size() < offset {
			logger.Info("file truncated; starting over", "path", path)
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			em.restart()
		}
		return feed(f, chunk, em)
	}

	// bytes written before the watch was added
	if err := drain(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case ev.Has(fsnotify.Write):
				if err := drain(); err != nil {
					return err
				}
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				logger.Info("file went away; stopping", "path", path, "op", ev.Op.String())
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
