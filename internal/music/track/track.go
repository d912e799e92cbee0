// Package track holds the immutable description of one playable item as
// returned by the node's track loader.
package track

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMalformedDescriptor = errors.New("malformed track descriptor")

// Info is the metadata block of a Descriptor. Pointer fields distinguish an
// absent value from a zero value.
type Info struct {
	Identifier *string `json:"identifier"`
	IsSeekable *bool   `json:"isSeekable"`
	Author     *string `json:"author"`
	Length     *int64  `json:"length"`
	IsStream   *bool   `json:"isStream"`
	Title      *string `json:"title"`
	URI        *string `json:"uri"`
}

// Descriptor is one raw track entry as served by /loadtracks.
type Descriptor struct {
	Track *string `json:"track"`
	Info  *Info   `json:"info"`
}

// Track is a playable item plus its opaque playback handle.
type Track struct {
	handle     string
	identifier string
	seekable   bool
	author     string
	length     int64
	stream     bool
	title      string
	uri        string
}

// Validate lists the fields missing from d. An empty result means d is well-formed.
func Validate(d Descriptor) []string {
	var missing []string
	if d.Track == nil {
		missing = append(missing, "track")
	}
	if d.Info == nil {
		return append(missing, "info")
	}

	i := d.Info
	check := func(ok bool, name string) {
		if !ok {
			missing = append(missing, "info."+name)
		}
	}
	check(i.Identifier != nil, "identifier")
	check(i.IsSeekable != nil, "isSeekable")
	check(i.Author != nil, "author")
	check(i.Length != nil, "length")
	check(i.IsStream != nil, "isStream")
	check(i.Title != nil, "title")
	check(i.URI != nil, "uri")
	return missing
}

// New builds a Track from d. It fails with ErrMalformedDescriptor when any of
// the eight required values is absent.
func New(d Descriptor) (Track, error) {
	if missing := Validate(d); len(missing) > 0 {
		return Track{}, fmt.Errorf("%w: missing %s", ErrMalformedDescriptor, strings.Join(missing, ", "))
	}

	i := d.Info
	return Track{
		handle:     *d.Track,
		identifier: *i.Identifier,
		seekable:   *i.IsSeekable,
		author:     *i.Author,
		length:     *i.Length,
		stream:     *i.IsStream,
		title:      *i.Title,
		uri:        *i.URI,
	}, nil
}

// Handle is the opaque string the node expects in a play command.
func (t Track) Handle() string     { return t.handle }
func (t Track) Identifier() string { return t.identifier }
func (t Track) IsSeekable() bool   { return t.seekable }
func (t Track) Author() string     { return t.author }
func (t Track) IsStream() bool     { return t.stream }
func (t Track) Title() string      { return t.title }
func (t Track) URI() string        { return t.uri }

// Length is the duration in milliseconds as reported by the node.
func (t Track) Length() int64 { return t.length }

func (t Track) Duration() time.Duration {
	return time.Duration(t.length) * time.Millisecond
}

func (t Track) String() string {
	if t.author == "" {
		return t.title
	}
	return t.author + " - " + t.title
}
