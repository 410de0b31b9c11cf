package fetcher

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testListing struct {
	XMLName xml.Name `xml:"property"`
	ID      string   `xml:"id,attr"`
	Address string   `xml:"address"`
	Price   int      `xml:"price"`
}

func TestStreamXML_NestedElements(t *testing.T) {
	input := `<feed>
		<agency id="a1">
			<property id="p1"><address>1 Main St</address><price>100</price></property>
			<property id="p2"><address>2 Main St</address><price>200</price></property>
		</agency>
		<other>skip me</other>
		<agency id="a2">
			<property id="p3"><address>3 Main St</address><price>300</price></property>
		</agency>
	</feed>`

	ch, errCh := StreamXML[testListing](context.Background(), strings.NewReader(input), "property")

	var items []testListing
	for item := range ch {
		items = append(items, item)
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, items, 3)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, "1 Main St", items[0].Address)
	assert.Equal(t, 300, items[2].Price)
}

func TestEachXML_Charset(t *testing.T) {
	// "Dún Laoghaire" with ú encoded as a single windows-1252 byte.
	input := "<?xml version=\"1.0\" encoding=\"windows-1252\"?>" +
		"<feed><property id=\"p1\"><address>D\xfan Laoghaire</address></property></feed>"

	var got []testListing
	err := EachXML(context.Background(), strings.NewReader(input), "property", func(l testListing) error {
		got = append(got, l)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dún Laoghaire", got[0].Address)
}

func TestEachXML_UnknownCharset(t *testing.T) {
	input := `<?xml version="1.0" encoding="x-made-up"?><feed/>`
	err := EachXML(context.Background(), strings.NewReader(input), "property", func(testListing) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")
}

func TestEachXML_CallbackErrorStops(t *testing.T) {
	input := `<feed><property id="p1"/><property id="p2"/></feed>`
	stop := errors.New("stop")
	calls := 0
	err := EachXML(context.Background(), strings.NewReader(input), "property", func(testListing) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestEachXML_Malformed(t *testing.T) {
	input := `<feed><property id="p1"><price>abc</price></property></feed>`
	err := EachXML(context.Background(), strings.NewReader(input), "property", func(testListing) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml: decode property")
}

func TestStreamXML_EmptyInput(t *testing.T) {
	ch, errCh := StreamXML[testListing](context.Background(), strings.NewReader(""), "property")

	var items []testListing
	for item := range ch {
		items = append(items, item)
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Empty(t, items)
}

func TestStreamXML_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, errCh := StreamXML[testListing](ctx, strings.NewReader(`<feed><property id="p1"/></feed>`), "property")
	for range ch {
	}

	var gotErr error
	for err := range errCh {
		gotErr = err
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "context")
}
