package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrClosed - the clip (or the source it was cut from) has been released
var ErrClosed = errors.New("clip is closed")

// Clip - an opened media handle or a view derived from one
//
// Every Clip returned by an Engine must be closed by the caller. Closing a
// derived clip does not close its source.
type Clip interface {
	Duration() float64
	Subclip(start, end float64) (Clip, error)
	Close() error
}

// Engine - opens, composes and renders clips
type Engine interface {
	Open(ctx context.Context, path string) (Clip, error)
	Compose(clips []Clip) (Clip, error)
	Write(ctx context.Context, clip Clip, dst string) error
}

// segment - one contiguous range of one input file
type segment struct {
	path  string
	info  Info
	start float64
	end   float64
}

func (s segment) length() float64 { return s.end - s.start }

type renderable interface {
	segments() ([]segment, error)
}

// sourceClip holds the opened source file for the lifetime of the handle.
type sourceClip struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	info   Info
	closed bool
}

func (c *sourceClip) Duration() float64 { return c.info.Duration }

func (c *sourceClip) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *sourceClip) Subclip(start, end float64) (Clip, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if err := checkRange(start, end, c.info.Duration); err != nil {
		return nil, err
	}
	return &subClip{source: c, seg: segment{path: c.path, info: c.info, start: start, end: end}}, nil
}

func (c *sourceClip) segments() ([]segment, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return []segment{{path: c.path, info: c.info, start: 0, end: c.info.Duration}}, nil
}

func (c *sourceClip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return c.file.Close()
}

// subClip - a time range view of a source
type subClip struct {
	source *sourceClip
	seg    segment
	closed bool
}

func (c *subClip) Duration() float64 { return c.seg.length() }

func (c *subClip) Subclip(start, end float64) (Clip, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if err := checkRange(start, end, c.seg.length()); err != nil {
		return nil, err
	}
	seg := c.seg
	seg.start, seg.end = c.seg.start+start, c.seg.start+end
	return &subClip{source: c.source, seg: seg}, nil
}

func (c *subClip) segments() ([]segment, error) {
	if c.closed || c.source.isClosed() {
		return nil, ErrClosed
	}
	return []segment{c.seg}, nil
}

func (c *subClip) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return nil
}

// composition - clips played back to back
type composition struct {
	parts  []renderable
	closed bool
}

func (c *composition) Duration() float64 {
	segs, err := c.segments()
	if err != nil {
		return 0
	}
	total := 0.0
	for _, s := range segs {
		total += s.length()
	}
	return total
}

func (c *composition) Subclip(start, end float64) (Clip, error) {
	return nil, errors.New("subclip of a composition is not supported")
}

func (c *composition) segments() ([]segment, error) {
	if c.closed {
		return nil, ErrClosed
	}
	var all []segment
	for _, p := range c.parts {
		segs, err := p.segments()
		if err != nil {
			return nil, err
		}
		all = append(all, segs...)
	}
	return all, nil
}

func (c *composition) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return nil
}

func checkRange(start, end, duration float64) error {
	if start < 0 || end < start || end > duration {
		return fmt.Errorf("range [%.3f, %.3f] outside [0, %.3f]", start, end, duration)
	}
	return nil
}

func compose(clips []Clip) (Clip, error) {
	if len(clips) == 0 {
		return nil, errors.New("nothing to compose")
	}
	parts := make([]renderable, 0, len(clips))
	for i, c := range clips {
		r, ok := c.(renderable)
		if !ok {
			return nil, fmt.Errorf("clip %d was not produced by this engine", i)
		}
		parts = append(parts, r)
	}
	return &composition{parts: parts}, nil
}
