package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// EachXML decodes every element named elementName, at any depth, and passes
// it to fn. Feeds declared in legacy charsets such as windows-1252 are
// transcoded to UTF-8. Decoding stops at the first error returned by fn.
func EachXML[T any](ctx context.Context, r io.Reader, elementName string, fn func(T) error) error {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	for {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "xml: context cancelled")
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "xml: read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != elementName {
			continue
		}

		var item T
		if err := decoder.DecodeElement(&item, &se); err != nil {
			return eris.Wrapf(err, "xml: decode %s", elementName)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

// StreamXML runs EachXML in a goroutine and delivers elements on a channel.
// Both channels are closed when processing completes.
func StreamXML[T any](ctx context.Context, r io.Reader, elementName string) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		err := EachXML(ctx, r, elementName, func(item T) error {
			select {
			case outCh <- item:
				return nil
			case <-ctx.Done():
				return eris.Wrap(ctx.Err(), "xml: context cancelled")
			}
		})
		if err != nil {
			errCh <- err
		}
	}()

	return outCh, errCh
}
