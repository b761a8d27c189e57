package stream

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := NewWriter(zw, "collections/books.jsonl")
	require.NoError(t, err)

	records := []testRecord{
		{ID: "1", Text: "It is a truth universally acknowledged"},
		{ID: "2", Text: "<b>markup</b> & ampersands stay readable"},
		{ID: "3", Text: strings.Repeat("long line ", 20000)},
	}
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}
	assert.Equal(t, 3, w.Count())
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	rc, err := OpenFile(zr, "collections/books.jsonl")
	require.NoError(t, err)

	var got []testRecord
	for rec, err := range NewReader[testRecord](rc).All() {
		require.NoError(t, err)
		got = append(got, *rec)
	}
	assert.Equal(t, records, got)
}

func TestWriter_DoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(&buf)
	require.NoError(t, w.Write(testRecord{ID: "1", Text: "a < b"}))
	assert.Equal(t, `{"id":"1","text":"a < b"}`+"\n", buf.String())
}

func TestOpenFile_NotFound(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, zip.NewWriter(&buf).Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	_, err = OpenFile(zr, "nonexistent.jsonl")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestReader_ContinuesOnBadLines(t *testing.T) {
	jsonl := `{"id":"1","text":"good"}
{bad json}

{"id":"2","text":"unknown field","extra":true}
{"id":"3","text":"also good"}
`
	reader := NewReader[testRecord](io.NopCloser(strings.NewReader(jsonl)))

	var good []string
	failures := 0
	for rec, err := range reader.All() {
		if err != nil {
			failures++
			continue
		}
		good = append(good, rec.ID)
	}

	assert.Equal(t, []string{"1", "3"}, good)
	assert.Equal(t, 2, failures)
}
