package ndjson

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func samples() []instrument.Sample {
	return []instrument.Sample{
		{
			Descriptor: instrument.Descriptor{Name: "sys-cpu", Kind: instrument.Float32, Unit: "%"},
			Float:      12.5,
		},
		{
			Descriptor: instrument.Descriptor{Name: "sys-disk-bytes", Kind: instrument.Int64, Unit: "By"},
			Int:        1 << 40,
			Tags:       []instrument.Tag{{Key: "kind", Value: "used"}, {Key: "disk", Value: "/"}},
		},
	}
}

func TestWriterOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	o := &Output{Writer: buf, Now: func() time.Time { return fixedNow }}
	require.NoError(t, o.Export(context.Background(), samples()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, `{"NAME":"sys-cpu","TIME":1704110400000000000,"KIND":"float32","VALUE":12.5,"UNIT":"%"}`, lines[0])
	require.Equal(t, `{"NAME":"sys-disk-bytes","TIME":1704110400000000000,"KIND":"int64","VALUE":1099511627776,"INT":1099511627776,"UNIT":"By","TAGS":[{"key":"kind","value":"used"},{"key":"disk","value":"/"}]}`, lines[1])
}

func TestTagOrderIsKept(t *testing.T) {
	buf := &bytes.Buffer{}
	o := &Output{Writer: buf, Now: func() time.Time { return fixedNow }}
	require.NoError(t, o.Export(context.Background(), samples()[1:]))
	line := buf.String()
	kind := strings.Index(line, `"kind"`)
	disk := strings.Index(line, `"disk"`)
	require.Positive(t, kind)
	require.Less(t, kind, disk)

	var rec Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, []instrument.Tag{{Key: "kind", Value: "used"}, {Key: "disk", Value: "/"}}, rec.Tags)
}

func TestHTTPOutput(t *testing.T) {
	var got []Record
	var contentType string
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var rec Record
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			got = append(got, rec)
		}
		io.WriteString(w, "ok")
	}))
	defer svr.Close()

	o := &Output{DestUrl: svr.URL, Now: func() time.Time { return fixedNow }}
	require.NoError(t, o.Export(context.Background(), samples()))
	require.Equal(t, "application/x-ndjson", contentType)
	require.Len(t, got, 2)
	require.Equal(t, "sys-disk-bytes", got[1].Name)
	require.NotNil(t, got[1].Int)
	require.Equal(t, int64(1<<40), *got[1].Int)
	require.Nil(t, got[0].Int)
}

func TestHTTPOutputError(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer svr.Close()

	o := &Output{DestUrl: svr.URL}
	err := o.Export(context.Background(), samples())
	require.ErrorContains(t, err, "503")
}
