package ndjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/OutOfBedlam/sysmetrics/export"
	"github.com/OutOfBedlam/sysmetrics/instrument"
)

var _ export.Output = (*Output)(nil)

// Output writes one JSON object per sample, either to Writer (stdout when
// nil) or, when DestUrl is set, POSTs the lines to it.
type Output struct {
	DestUrl string // e.g. "http://127.0.0.1:5654/db/write/TAG"
	Writer  io.Writer
	Client  *http.Client

	// Now stamps the records; time.Now when nil.
	Now func() time.Time

	mu sync.Mutex
}

type Record struct {
	Name  string           `json:"NAME"`
	Time  int64            `json:"TIME"`
	Kind  string           `json:"KIND"`
	Value float64          `json:"VALUE"`
	Int   *int64           `json:"INT,omitempty"`
	Unit  string           `json:"UNIT,omitempty"`
	Tags  []instrument.Tag `json:"TAGS,omitempty"`
}

func NewRecord(s instrument.Sample, ts time.Time) Record {
	r := Record{
		Name:  s.Name,
		Time:  ts.UnixNano(),
		Kind:  s.Kind.String(),
		Value: s.Float64(),
		Unit:  s.Unit,
	}
	if s.Kind == instrument.Int64 {
		v := s.Int
		r.Int = &v
	}
	// tags keep their emission order
	if len(s.Tags) > 0 {
		r.Tags = append([]instrument.Tag(nil), s.Tags...)
	}
	return r
}

func (o *Output) Export(ctx context.Context, samples []instrument.Sample) error {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	ts := now()
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	for _, s := range samples {
		if err := enc.Encode(NewRecord(s, ts)); err != nil {
			return fmt.Errorf("error marshaling sample %s: %w", s.Name, err)
		}
	}
	if o.DestUrl == "" {
		o.mu.Lock()
		defer o.mu.Unlock()
		w := o.Writer
		if w == nil {
			w = os.Stdout
		}
		_, err := w.Write(buf.Bytes())
		return err
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.DestUrl, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	rsp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending samples: %w", err)
	}
	defer rsp.Body.Close()
	io.Copy(io.Discard, rsp.Body)
	if rsp.StatusCode != http.StatusOK {
		return fmt.Errorf("error response from server: %s", rsp.Status)
	}
	return nil
}
