// Package importer loads the yearly blocos CSV into the events_base
// table. Rows are normalized (dates, times, whitespace), deduplicated
// against already-imported events by their natural key, and written in
// one bulk upsert so re-running the import updates instead of
// duplicating.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blocosbh/bloco-agenda/internal/model"
	"github.com/blocosbh/bloco-agenda/internal/repository"
)

// Column headers as they appear in the published listing. DATA, BLOCO
// and the concentration address are required; the rest may be empty.
const (
	colDate     = "DATA"
	colTime     = "HORÁRIO"
	colTitle    = "BLOCO"
	colLocation = "LOCAL DA CONCETRAÇÃO" // sic, header typo is in the source data
	colRitmos   = "RITMOS"
	colTamanho  = "TAMANHO PÚBLICO"
	colLGBT     = "LGBT"
)

// saoPaulo is the fixed listing offset; the printed schedule carries no
// zone information.
var saoPaulo = time.FixedZone("-03", -3*60*60)

var (
	dayMonthRe = regexp.MustCompile(`^(\d{2})/(\d{2})$`)
	timeRe     = regexp.MustCompile(`^(\d{1,2})h(\d{2})?$`)
)

// Report summarizes one import run.
type Report struct {
	Inserted int
	Updated  int
	Ignored  int
}

// EventStore is the importer's view of the events table. The MySQL
// repository implements it; tests substitute an in-memory fake.
type EventStore interface {
	ListExistingKeys(ctx context.Context, year int) ([]repository.ExistingID, error)
	UpsertBatch(ctx context.Context, events []model.BaseEvent) error
}

// Importer wires the CSV reader to the events store.
type Importer struct {
	Events EventStore
}

func New(events EventStore) *Importer {
	return &Importer{Events: events}
}

// RunFile imports the CSV at path into the given carnival year.
func (im *Importer) RunFile(ctx context.Context, path string, year int) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()
	return im.Run(ctx, f, year)
}

// Run parses, normalizes and upserts all events from r.
func (im *Importer) Run(ctx context.Context, r io.Reader, year int) (Report, error) {
	if year < 2000 || year > 2100 {
		return Report{}, fmt.Errorf("invalid year: %d", year)
	}

	events, ignored, err := Parse(r, year)
	if err != nil {
		return Report{}, err
	}

	existing, err := im.Events.ListExistingKeys(ctx, year)
	if err != nil {
		return Report{}, fmt.Errorf("list existing events: %w", err)
	}
	existingByKey := make(map[string]string, len(existing))
	for _, ex := range existing {
		existingByKey[ex.Key] = ex.ID
	}

	report := Report{Ignored: ignored}
	for i := range events {
		if id, ok := existingByKey[events[i].Key()]; ok {
			events[i].ID = id // reuse the id so the upsert updates in place
			report.Updated++
		} else {
			report.Inserted++
		}
	}

	if err := im.Events.UpsertBatch(ctx, events); err != nil {
		return Report{}, fmt.Errorf("upsert events: %w", err)
	}
	return report, nil
}

// Parse reads the CSV and returns the normalized events plus the count
// of rows skipped for missing or malformed required fields.
func Parse(r io.Reader, year int) ([]model.BaseEvent, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // listings are hand-maintained; be lenient
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colDate, colTitle, colLocation} {
		if _, ok := idx[required]; !ok {
			return nil, 0, fmt.Errorf("missing required column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var events []model.BaseEvent
	ignored := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			ignored++
			continue
		}

		title := field(rec, colTitle)
		location := field(rec, colLocation)
		day := NormalizeDate(field(rec, colDate), year)
		if title == "" || location == "" || day.IsZero() {
			ignored++
			continue
		}

		startsAt := day
		allDay := true
		if t, ok := NormalizeTime(field(rec, colTime)); ok {
			startsAt = day.Add(t)
			allDay = false
		}

		events = append(events, model.BaseEvent{
			ID:             uuid.NewString(),
			Title:          title,
			StartsAt:       startsAt,
			AllDay:         allDay,
			Location:       location,
			Ritmos:         field(rec, colRitmos),
			TamanhoPublico: field(rec, colTamanho),
			LGBT:           field(rec, colLGBT),
		})
	}
	return events, ignored, nil
}

// NormalizeDate turns a "dd/mm" listing date into midnight local time
// of the target year. Returns the zero time for anything else.
func NormalizeDate(raw string, year int) time.Time {
	m := dayMonthRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, saoPaulo)
}

// NormalizeTime parses listing times like "7h", "17h30". "a divulgar"
// (to be announced) and empty values report !ok, which the caller turns
// into an all-day event.
func NormalizeTime(raw string) (time.Duration, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "a divulgar" {
		return 0, false
	}
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes := 0
	if m[2] != "" {
		minutes, _ = strconv.Atoi(m[2])
	}
	if hours > 23 || minutes > 59 {
		return 0, false
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, true
}
