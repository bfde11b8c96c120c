package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// Scanner buffer limit for a single NDJSON line (1 MB).
const maxLineSize = 1024 * 1024

// Stream is a lazy, forward-only sequence of text fragments read from a
// streaming (newline-delimited JSON) response body. Each line is decoded
// independently; malformed lines are skipped. The caller must drain the
// stream or call Close to release the underlying connection.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	extract func(line []byte) (fragment string, done bool, ok bool)
	err     error
	done    bool
}

func newStream(body io.ReadCloser, extract func([]byte) (string, bool, bool)) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Stream{body: body, scanner: scanner, extract: extract}
}

// Next returns the next non-empty fragment. It reports false when the
// stream has ended, whether cleanly or due to a read error (see Err).
func (s *Stream) Next() (string, bool) {
	if s.done {
		return "", false
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		fragment, done, ok := s.extract(line)
		if !ok {
			// Malformed line; never abort the stream over one bad chunk.
			continue
		}
		if done {
			s.finish()
			if fragment != "" {
				return fragment, true
			}
			return "", false
		}
		if fragment != "" {
			return fragment, true
		}
	}
	s.err = s.scanner.Err()
	s.finish()
	return "", false
}

// Err reports a read error encountered while scanning the response body.
// It is nil after a clean end of stream.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the underlying connection. It is safe to call more than
// once and after the stream has been drained.
func (s *Stream) Close() error {
	s.finish()
	return nil
}

func (s *Stream) finish() {
	if !s.done {
		s.done = true
		s.body.Close()
	}
}

// Text drains the stream and returns the concatenated fragments.
func (s *Stream) Text() (string, error) {
	var b bytes.Buffer
	for {
		fragment, more := s.Next()
		if !more {
			break
		}
		b.WriteString(fragment)
	}
	return b.String(), s.Err()
}

func chatExtract(line []byte) (string, bool, bool) {
	var resp chatResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return "", false, false
	}
	return resp.Message.Content, resp.Done, true
}

func generateExtract(line []byte) (string, bool, bool) {
	var resp generateResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return "", false, false
	}
	return resp.Response, resp.Done, true
}

// ProgressStream is a lazy sequence of progress objects from a streaming
// model pull or create. Same contract as Stream: malformed lines are
// skipped, and the caller drains or closes it.
type ProgressStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	err     error
	done    bool
}

func newProgressStream(body io.ReadCloser) *ProgressStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &ProgressStream{body: body, scanner: scanner}
}

// Next returns the next progress update, reporting false at end of stream.
func (p *ProgressStream) Next() (ProgressUpdate, bool) {
	if p.done {
		return ProgressUpdate{}, false
	}
	for p.scanner.Scan() {
		line := bytes.TrimSpace(p.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var update ProgressUpdate
		if err := json.Unmarshal(line, &update); err != nil {
			continue
		}
		return update, true
	}
	p.err = p.scanner.Err()
	p.Close()
	return ProgressUpdate{}, false
}

// Err reports a read error encountered while scanning the response body.
func (p *ProgressStream) Err() error {
	return p.err
}

// Close releases the underlying connection.
func (p *ProgressStream) Close() error {
	if !p.done {
		p.done = true
		p.body.Close()
	}
	return nil
}
