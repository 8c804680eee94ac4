package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/models"
)

const tailPollInterval = 2 * time.Second

// TailJSONL follows an append-only JSON lines file and sends every decoded
// record to out. Lines that fail to decode are skipped. A missing file is
// waited for.
func TailJSONL[T any](ctx context.Context, path string, out chan<- T, log zerolog.Logger) error {
	log = log.With().Str("component", "tail").Str("path", path).Logger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	poll := time.NewTicker(tailPollInterval)
	defer poll.Stop()

	var (
		f       *os.File
		reader  *bufio.Reader
		partial []byte
	)
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	drain := func() error {
		if f == nil {
			opened, err := os.Open(path)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			f = opened
			reader = bufio.NewReader(f)
		}
		for {
			chunk, err := reader.ReadBytes('\n')
			partial = append(partial, chunk...)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			line := bytes.TrimSpace(partial)
			partial = partial[:0]
			if len(line) == 0 {
				continue
			}
			var rec T
			if err := json.Unmarshal(line, &rec); err != nil {
				log.Warn().Err(err).Msg("skipping malformed line")
				continue
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	for {
		if err := drain(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != filepath.Clean(path) {
				continue
			}
		case err, ok := <-watcher.Errors:
			if ok && err != nil {
				log.Warn().Err(err).Msg("watcher error")
			}
		case <-poll.C:
		}
	}
}

// ReadJSONL decodes every complete line of path. A missing file yields no
// records; malformed lines are skipped.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

// Replay applies the recorded holdings, ticks and news files to e in that
// order and returns how many facts were applied.
func Replay(e *Enricher, portfolioPath, tickPath, newsPath string) (int, error) {
	holdings, err := ReadJSONL[models.Holding](portfolioPath)
	if err != nil {
		return 0, err
	}
	ticks, err := ReadJSONL[models.Tick](tickPath)
	if err != nil {
		return 0, err
	}
	news, err := ReadJSONL[models.NewsItem](newsPath)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, h := range holdings {
		if !h.Valid() {
			continue
		}
		e.ApplyHolding(h)
		applied++
	}
	for _, t := range ticks {
		e.ApplyTick(t)
	}
	for _, n := range news {
		e.ApplyNews(n)
	}
	return applied + len(ticks) + len(news), nil
}

// AppendJSONL appends v as one line with a single write so tailing readers
// never observe half a record.
func AppendJSONL(path string, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
