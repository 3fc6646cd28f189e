package loader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"geodash/internal/metrics"
)

type fakeFetcher struct {
	fetchFn func(ctx context.Context, table string) ([]map[string]any, error)
	calls   []string
}

func (f *fakeFetcher) FetchTable(ctx context.Context, table string) ([]map[string]any, error) {
	f.calls = append(f.calls, table)
	return f.fetchFn(ctx, table)
}

func TestLoad_FailedTableKeepsOthers(t *testing.T) {
	f := &fakeFetcher{fetchFn: func(_ context.Context, table string) ([]map[string]any, error) {
		switch table {
		case "t1":
			return []map[string]any{{"Ort": "A", "latitude": 53.1, "longitude": 10.2}}, nil
		case "t2":
			return nil, errors.New("boom")
		default:
			return []map[string]any{{"Ort": "C"}, {"Ort": "D"}}, nil
		}
	}}
	c := &Collector{}
	l := New(zerolog.Nop(), f, []string{"t1", "t2", "t3"}, metrics.New())

	res := l.Load(context.Background(), c)

	if strings.Join(f.calls, ",") != "t1,t2,t3" {
		t.Fatalf("expected sequential fetch of all tables, got %v", f.calls)
	}
	if res.Total != 3 || len(res.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", res.Total)
	}
	if res.Records[0].Table != "t1" || res.Records[2].Table != "t3" {
		t.Fatalf("expected records tagged with their table, got %+v", res.Records)
	}
	if res.Geocoded != 1 {
		t.Fatalf("expected 1 geocoded record, got %d", res.Geocoded)
	}
	failed := res.Failed()
	if len(failed) != 1 || failed[0].Table != "t2" || failed[0].Error == "" {
		t.Fatalf("expected t2 to be reported failed, got %+v", failed)
	}

	notes := c.Notifications()
	if len(notes) != 2 {
		t.Fatalf("expected failure and summary notifications, got %+v", notes)
	}
	if notes[0].Title != "Fehler bei t2" || notes[0].Variant != VariantDestructive {
		t.Fatalf("unexpected failure notification: %+v", notes[0])
	}
	if notes[1].Title != "Daten geladen" || !strings.HasPrefix(notes[1].Description, "3 ") {
		t.Fatalf("unexpected summary notification: %+v", notes[1])
	}
	if res.RunID == "" {
		t.Fatalf("expected run id")
	}
}

func TestLoad_AllFailStillSummarises(t *testing.T) {
	f := &fakeFetcher{fetchFn: func(context.Context, string) ([]map[string]any, error) {
		return nil, errors.New("down")
	}}
	c := &Collector{}
	res := New(zerolog.Nop(), f, []string{"a", "b"}, nil).Load(context.Background(), c)

	if res.Total != 0 || len(res.Failed()) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := len(c.Notifications()); got != 3 {
		t.Fatalf("expected 3 notifications, got %d", got)
	}
}

func TestLoad_CancelledContextReportsRemainingTables(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{fetchFn: func(context.Context, string) ([]map[string]any, error) {
		cancel()
		return []map[string]any{{"Ort": "A"}}, nil
	}}
	c := &Collector{}
	res := New(zerolog.Nop(), f, []string{"a", "b"}, nil).Load(ctx, c)

	if len(f.calls) != 1 {
		t.Fatalf("expected one fetch, got %v", f.calls)
	}
	if res.Total != 1 || !errors.Is(res.Tables[1].Err, context.Canceled) {
		t.Fatalf("unexpected result: %+v", res.Tables)
	}
	notes := c.Notifications()
	if len(notes) != 2 {
		t.Fatalf("expected error + summary notifications, got %+v", notes)
	}
	if notes[0].Title != "Fehler bei b" || notes[0].Variant != VariantDestructive {
		t.Fatalf("expected destructive notification for b, got %+v", notes[0])
	}
}

func TestMulti(t *testing.T) {
	a, b := &Collector{}, &Collector{}
	Multi{a, nil, b}.Notify(Notification{Title: "x"})
	if len(a.Notifications()) != 1 || len(b.Notifications()) != 1 {
		t.Fatalf("expected fan-out to both collectors")
	}
}
